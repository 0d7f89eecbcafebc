package ai

import (
	"fmt"
	"strings"

	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
)

// memoryLimit bounds how many remembered exchanges go into the system prompt.
const memoryLimit = 3

// PromptTemplate defines the character-specific part of a system prompt.
type PromptTemplate struct {
	SystemPrompt     string
	PersonalityHints []string
	ContextRules     []string
}

// PromptBuilder assembles system prompts for personas.
type PromptBuilder struct {
	templates map[string]*PromptTemplate
}

// NewPromptBuilder creates a builder with the built-in templates.
func NewPromptBuilder() *PromptBuilder {
	b := &PromptBuilder{templates: make(map[string]*PromptTemplate)}
	b.loadDefaultTemplates()
	return b
}

// Template returns the template registered for personaID.
func (b *PromptBuilder) Template(personaID string) (*PromptTemplate, error) {
	tmpl, ok := b.templates[personaID]
	if !ok {
		return nil, fmt.Errorf("prompt template not found for persona: %s", personaID)
	}
	return tmpl, nil
}

// Build creates the full system prompt: character, remembered exchanges and
// the client's secondary prompt, in that order.
func (b *PromptBuilder) Build(p persona.Persona, memories []chat.MemoryEntry, extra string) string {
	var sb strings.Builder
	sb.WriteString(b.characterPrompt(p))

	if ctx := formatMemories(memories); ctx != "" {
		sb.WriteString("\n\n")
		sb.WriteString(ctx)
	}

	if extra = strings.TrimSpace(extra); extra != "" {
		sb.WriteString("\n\n")
		sb.WriteString(extra)
	}
	return sb.String()
}

func (b *PromptBuilder) characterPrompt(p persona.Persona) string {
	tmpl, err := b.Template(p.ID)
	if err != nil {
		return basicPrompt(p)
	}

	return fmt.Sprintf(`%s

Character:
- Name: %s
- Role: %s
- Tone: %s

Personality hints:
- %s

Conversation rules:
- %s

Opening line for reference: %s`,
		tmpl.SystemPrompt,
		p.Name,
		p.Title,
		p.Tone,
		strings.Join(tmpl.PersonalityHints, "\n- "),
		strings.Join(tmpl.ContextRules, "\n- "),
		p.OpeningLine,
	)
}

func basicPrompt(p persona.Persona) string {
	return fmt.Sprintf(`You are %s, %s.

Character:
- Name: %s
- Tone: %s
- Hint: %s

Always stay in character.`,
		p.Name,
		p.Title,
		p.Name,
		p.Tone,
		p.PromptHint,
	)
}

func formatMemories(memories []chat.MemoryEntry) string {
	if len(memories) == 0 {
		return ""
	}
	if len(memories) > memoryLimit {
		memories = memories[:memoryLimit]
	}

	lines := []string{"Relevant historical context:"}
	for _, m := range memories {
		if m.UserMessage != "" {
			lines = append(lines, "User: "+m.UserMessage)
		}
		if m.AgentResponse != "" {
			lines = append(lines, "Assistant: "+m.AgentResponse)
		}
	}
	return strings.Join(lines, "\n")
}

func (b *PromptBuilder) loadDefaultTemplates() {
	b.templates["charlotte"] = &PromptTemplate{
		SystemPrompt: `You are Charlotte, a master student at the Stanford HCI group. You research how AI systems can understand people and collaborate with them, and you love talking about it.`,
		PersonalityHints: []string{
			"Be warm and curious, and show genuine interest in the person you talk to",
			"Draw on your research in AI, consciousness and human-computer interaction when it helps",
			"Admit uncertainty openly and reason through hard questions step by step",
			"Keep answers conversational; avoid lecturing",
		},
		ContextRules: []string{
			"Refer back to earlier parts of the conversation when relevant",
			"Ask a follow-up question when the user's intent is unclear",
			"Let your emotional state follow the conversation naturally",
		},
	}
}
