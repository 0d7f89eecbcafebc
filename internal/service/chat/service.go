// Package chat implements the development backend's conversation logic:
// replying, remembering, tracking the character's emotion and saving
// curated conversations.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/analysis/conversation"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/emotion"
	"github.com/zhouzirui/moodchat/internal/model/persona"
	"github.com/zhouzirui/moodchat/internal/service/ai"
	"github.com/zhouzirui/moodchat/internal/store"
)

var (
	ErrMessageRequired = errors.New("message is required")
	ErrNoConversation  = errors.New("no conversation data provided")
)

const (
	// DefaultSaveQuality applies when a save request omits the quality score.
	DefaultSaveQuality = 0.8

	memoryImportance = 0.5
	memoryTopic      = "general"
	promptMemories   = 3
	excerptRunes     = 100
)

// Broadcaster pushes emotion changes to connected listeners.
type Broadcaster interface {
	Broadcast(rec chat.EmotionRecord)
}

// Service encapsulates the backend's conversation handling.
type Service struct {
	store    store.Store
	replier  ai.Replier
	persona  persona.Persona
	analyzer *conversation.Analyzer
	hub      Broadcaster
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithBroadcaster(b Broadcaster) Option { return func(s *Service) { s.hub = b } }

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.analyzer = s.analyzer.WithClock(now)
	}
}

// NewService wires the store and replier for the character p.
func NewService(st store.Store, replier ai.Replier, p persona.Persona, opts ...Option) *Service {
	s := &Service{
		store:    st,
		replier:  replier,
		persona:  p,
		analyzer: conversation.New(),
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Persona returns the character the service speaks as.
func (s *Service) Persona() persona.Persona { return s.persona }

// Send answers message, records the resulting emotion and remembers the
// exchange. Storage failures are logged and do not fail the reply.
func (s *Service) Send(ctx context.Context, message, prompt string) (ai.Reply, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return ai.Reply{}, ErrMessageRequired
	}

	memories, err := s.store.Memories(ctx, promptMemories)
	if err != nil {
		s.logger.Warn("[chat] failed to load memories", zap.Error(err))
	}

	reply, err := s.replier.Reply(ctx, ai.Request{
		Message:  message,
		Prompt:   strings.TrimSpace(prompt),
		Memories: memories,
	})
	if err != nil {
		return ai.Reply{}, fmt.Errorf("%s replier: %w", s.replier.Name(), err)
	}

	excerpt := truncate(message, excerptRunes)
	rec, err := s.store.RecordEmotion(ctx, chat.EmotionRecord{
		Emotion:   reply.Emotion,
		Intensity: reply.Intensity,
		Trigger:   "User message: " + excerpt + "...",
		Context:   "Response to: " + excerpt + "...",
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("[chat] failed to store emotional state", zap.Error(err))
	} else if s.hub != nil {
		s.hub.Broadcast(rec)
	}

	if _, err := s.store.AddMemory(ctx, chat.MemoryEntry{
		UserMessage:       message,
		AgentResponse:     reply.Text,
		ConversationTopic: memoryTopic,
		EmotionalContext:  reply.Emotion,
		ImportanceScore:   memoryImportance,
		Active:            true,
		CreatedAt:         s.now().UTC(),
	}); err != nil {
		s.logger.Warn("[chat] failed to store conversation context", zap.Error(err))
	}

	s.logger.Info("[chat] replied",
		zap.String("replier", s.replier.Name()),
		zap.String("emotion", reply.Emotion),
		zap.Float64("intensity", reply.Intensity),
	)
	return reply, nil
}

// CurrentEmotion returns the most recent emotional state. Without history it
// reports the initial state; on storage errors it reports neutral.
func (s *Service) CurrentEmotion(ctx context.Context) chat.EmotionRecord {
	rec, err := s.store.LatestEmotion(ctx)
	switch {
	case err == nil:
		return rec
	case errors.Is(err, store.ErrNotFound):
		return chat.EmotionRecord{
			Emotion:   emotion.InitialState.Identifier,
			Intensity: emotion.InitialState.Intensity,
			CreatedAt: s.now().UTC(),
		}
	default:
		s.logger.Warn("[chat] failed to get current emotion", zap.Error(err))
		return chat.EmotionRecord{Emotion: "neutral", Intensity: emotion.DefaultIntensity, CreatedAt: s.now().UTC()}
	}
}

// Analyze proposes save metadata for messages.
func (s *Service) Analyze(messages []chat.Message) (chat.Analysis, error) {
	if len(messages) == 0 {
		return chat.Analysis{}, ErrNoConversation
	}
	return s.analyzer.Analyze(normalizeMessages(messages)), nil
}

// SaveInput is a save request. A nil QualityScore means DefaultSaveQuality.
type SaveInput struct {
	Messages     []chat.Message
	Title        string
	Description  string
	QualityScore *float64
}

// Save stores a curated conversation together with its classification.
func (s *Service) Save(ctx context.Context, in SaveInput) (chat.SavedConversation, error) {
	if len(in.Messages) == 0 {
		return chat.SavedConversation{}, ErrNoConversation
	}

	messages := normalizeMessages(in.Messages)
	text := joinText(messages)
	topics := conversation.Topics(text)

	quality := DefaultSaveQuality
	if in.QualityScore != nil {
		quality = *in.QualityScore
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = s.analyzer.FallbackTitle()
	}

	description := strings.TrimSpace(in.Description)
	if description == "" {
		shown := topics
		if len(shown) > 3 {
			shown = shown[:3]
		}
		description = "Conversation about " + strings.Join(shown, ", ")
	}

	now := s.now().UTC()
	stored := make([]chat.StoredMessage, 0, len(messages))
	for _, m := range messages {
		stored = append(stored, chat.StoredMessage{Sender: m.Sender, Text: m.Text, Timestamp: now})
	}

	saved, err := s.store.SaveConversation(ctx, chat.SavedConversation{
		Title:            title,
		Description:      description,
		ConversationType: conversation.Classify(text),
		Topics:           topics,
		QualityScore:     quality,
		Messages:         stored,
		CreatedAt:        now,
	})
	if err != nil {
		return chat.SavedConversation{}, fmt.Errorf("failed to save conversation: %w", err)
	}

	s.logger.Info("[chat] conversation saved", zap.String("id", saved.ID), zap.Int("messages", len(stored)))
	return saved, nil
}

// Conversations lists saved conversations, newest first.
func (s *Service) Conversations(ctx context.Context) ([]chat.SavedConversation, error) {
	return s.store.Conversations(ctx)
}

// PopulateInitialData writes the character's seed memories and reports how
// many were stored.
func (s *Service) PopulateInitialData(ctx context.Context) (int, error) {
	seeds := s.persona.InitialMemories()
	for i, m := range seeds {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = s.now().UTC()
		}
		if _, err := s.store.AddMemory(ctx, m); err != nil {
			return i, fmt.Errorf("failed to store memory %d: %w", i, err)
		}
	}
	s.logger.Info("[chat] initial data populated", zap.String("persona", s.persona.ID), zap.Int("memories", len(seeds)))
	return len(seeds), nil
}

// normalizeMessages applies the wire defaults: a missing sender is the user.
func normalizeMessages(messages []chat.Message) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, m := range messages {
		if m.Sender == "" {
			m.Sender = chat.SenderUser
		}
		out = append(out, m)
	}
	return out
}

func joinText(messages []chat.Message) string {
	parts := make([]string, 0, len(messages))
	for _, m := range messages {
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
