package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/config"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
	"github.com/zhouzirui/moodchat/internal/service/emotion"
)

// Ark answers through an eino chain (template + chat model). The model is
// asked to append emotion markers, which are parsed and stripped. When the
// markers are missing and a classifier is attached, it labels the reply.
type Ark struct {
	persona    persona.Persona
	prompts    *PromptBuilder
	chain      compose.Runnable[map[string]any, *schema.Message]
	classifier *emotion.Service
	logger     *zap.Logger
}

// NewArk creates the Ark chat model from cfg and compiles the chain.
func NewArk(ctx context.Context, cfg config.AIConfig, p persona.Persona, logger *zap.Logger) (*Ark, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}
	a, err := NewChain(ctx, chatModel, p, logger)
	if err != nil {
		return nil, err
	}
	if cfg.EmotionClassifier {
		classifier, err := emotion.NewService(ctx, chatModel, emotion.Config{Enabled: true}, logger)
		if err != nil {
			return nil, err
		}
		a.WithClassifier(classifier)
	}
	return a, nil
}

// WithClassifier labels replies that come back without emotion markers.
func (a *Ark) WithClassifier(c *emotion.Service) *Ark {
	a.classifier = c
	return a
}

// NewChain compiles the reply chain around any eino chat model.
func NewChain(ctx context.Context, chatModel model.BaseChatModel, p persona.Persona, logger *zap.Logger) (*Ark, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Ark{
		persona: p,
		prompts: NewPromptBuilder(),
		chain:   runnable,
		logger:  logger,
	}, nil
}

func (a *Ark) Name() string { return "ark" }

func (a *Ark) Reply(ctx context.Context, req Request) (Reply, error) {
	response, err := a.chain.Invoke(ctx, a.buildChainInput(req))
	if err != nil {
		return Reply{}, fmt.Errorf("failed to run AI chain: %w", err)
	}

	if response == nil || response.Content == "" {
		return Reply{Text: "No response generated", Emotion: fallbackEmotion, Intensity: fallbackIntensity}, nil
	}

	reply := ParseMarkers(response.Content)
	if a.classifier != nil && !hasEmotionMarker(response.Content) {
		g := a.classifier.Analyze(ctx, &a.persona, req.History, req.Message, reply.Text)
		reply.Emotion = string(g.Decision.Emotion)
		reply.Intensity = clamp01(g.Decision.Intensity)
		a.logger.Debug("[ai] reply had no emotion marker, classified",
			zap.String("emotion", reply.Emotion),
			zap.Float64("confidence", g.Confidence),
			zap.String("reason", g.Reason),
		)
	}
	a.logger.Debug("[ai] generated response",
		zap.String("persona", a.persona.ID),
		zap.Int("length", len(reply.Text)),
		zap.String("emotion", reply.Emotion),
	)
	return reply, nil
}

func (a *Ark) buildChainInput(req Request) map[string]any {
	return map[string]any{
		"system":  a.prompts.Build(a.persona, req.Memories, req.Prompt) + "\n\n" + emotionInstruction,
		"history": buildHistoryMessages(req.History),
		"query":   req.Message,
	}
}

func buildHistoryMessages(messages []chat.Message) []*schema.Message {
	messages = trimHistory(messages)
	if len(messages) == 0 {
		return nil
	}

	history := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Sender {
		case chat.SenderUser:
			history = append(history, schema.UserMessage(msg.Text))
		case chat.SenderBot:
			history = append(history, schema.AssistantMessage(msg.Text, nil))
		}
	}
	return history
}
