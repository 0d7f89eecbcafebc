package chat

import "time"

// Analysis is the auto-generated metadata proposed when a conversation is saved.
type Analysis struct {
	Title             string   `json:"title"`
	Description       string   `json:"description"`
	QualityScore      float64  `json:"quality_score"`
	ConversationType  string   `json:"conversation_type,omitempty"`
	Topics            []string `json:"topics,omitempty"`
	EmotionalTone     string   `json:"emotional_tone,omitempty"`
	ConversationDepth string   `json:"conversation_depth,omitempty"`
}

// SavedConversation is a curated conversation kept by the backend.
type SavedConversation struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	ConversationType string          `json:"conversation_type,omitempty"`
	Topics           []string        `json:"topics,omitempty"`
	QualityScore     float64         `json:"quality_score"`
	UsageCount       int             `json:"usage_count"`
	Messages         []StoredMessage `json:"conversation_data,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// MemoryEntry is one remembered exchange between the user and the character.
type MemoryEntry struct {
	ID                string    `json:"id"`
	UserMessage       string    `json:"user_message"`
	AgentResponse     string    `json:"agent_response"`
	ConversationTopic string    `json:"conversation_topic"`
	EmotionalContext  string    `json:"emotional_context"`
	ImportanceScore   float64   `json:"importance_score"`
	Active            bool      `json:"is_active"`
	CreatedAt         time.Time `json:"created_at"`
}

// EmotionRecord is one recorded change of the character's emotional state.
type EmotionRecord struct {
	ID        string    `json:"id"`
	Emotion   string    `json:"emotion"`
	Intensity float64   `json:"intensity"`
	Trigger   string    `json:"trigger,omitempty"`
	Context   string    `json:"conversation_context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
