// Package ai produces the character's replies for the development backend.
package ai

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/config"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
)

// historyLimit bounds how many earlier messages are sent to a model.
const historyLimit = 10

// Request is everything a Replier may use to answer one user message.
type Request struct {
	Message string
	// Prompt is the optional secondary instruction sent by the client.
	Prompt   string
	History  []chat.Message
	Memories []chat.MemoryEntry
}

// Reply is the character's answer with the emotion it reported.
type Reply struct {
	Text      string
	Emotion   string
	Intensity float64
}

// Replier answers user messages.
type Replier interface {
	Reply(ctx context.Context, req Request) (Reply, error)
	Name() string
}

// New selects a Replier for cfg.Provider.
func New(ctx context.Context, cfg config.AIConfig, p persona.Persona, logger *zap.Logger) (Replier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case "", "echo":
		return NewEcho(p), nil
	case "ark":
		return NewArk(ctx, cfg, p, logger)
	case "openai":
		return NewOpenAI(cfg, p, logger)
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func trimHistory(messages []chat.Message) []chat.Message {
	if len(messages) > historyLimit {
		return messages[len(messages)-historyLimit:]
	}
	return messages
}
