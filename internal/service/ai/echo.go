package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/zhouzirui/moodchat/internal/analysis/emotion"
	"github.com/zhouzirui/moodchat/internal/model/persona"
)

// Echo answers without a language model. It replays a remembered answer when
// the user repeats a remembered question, and otherwise echoes the message.
// The emotion comes from the keyword analyzer.
type Echo struct {
	persona persona.Persona
}

// NewEcho creates an offline replier speaking as p.
func NewEcho(p persona.Persona) *Echo {
	return &Echo{persona: p}
}

func (e *Echo) Name() string { return "echo" }

func (e *Echo) Reply(ctx context.Context, req Request) (Reply, error) {
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	text := e.recall(req)
	if text == "" {
		name := e.persona.Name
		if name == "" {
			name = "I"
		}
		text = fmt.Sprintf("%s heard you say: %s", name, strings.TrimSpace(req.Message))
	}

	decision := emotion.Analyze(req.Message, text)
	return Reply{
		Text:      text,
		Emotion:   string(decision.Emotion),
		Intensity: decision.Intensity,
	}, nil
}

func (e *Echo) recall(req Request) string {
	msg := strings.TrimSpace(req.Message)
	for _, m := range req.Memories {
		if strings.EqualFold(strings.TrimSpace(m.UserMessage), msg) {
			return m.AgentResponse
		}
	}
	for _, m := range e.persona.Memories {
		if strings.EqualFold(strings.TrimSpace(m.UserMessage), msg) {
			return m.AgentResponse
		}
	}
	return ""
}
