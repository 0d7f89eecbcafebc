// Package emotion asks a chat model which emotion the character is showing
// when a reply arrives without emotion markers.
package emotion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	analysis "github.com/zhouzirui/moodchat/internal/analysis/emotion"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	vocab "github.com/zhouzirui/moodchat/internal/model/emotion"
	"github.com/zhouzirui/moodchat/internal/model/persona"
)

// Config 控制情绪分类服务的行为。
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Guidance 表示一次分类的结果。
type Guidance struct {
	Decision   analysis.Decision
	Confidence float64
	Reason     string
}

// Service 使用大模型判断角色回复的情绪，失败时回退到关键词规则。
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(user, reply string) analysis.Decision
	historyLimit int
	logger       *zap.Logger
}

// NewService 创建情绪分类服务。chatModel 可复用回复所用的模型实例。
func NewService(ctx context.Context, chatModel model.BaseChatModel, cfg Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		historyLimit: historyLimit,
		logger:       logger,
	}
	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile emotion classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled 返回是否会调用大模型。
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze 根据上下文判断 reply 所表达的情绪。结果标签总在词表之内。
func (s *Service) Analyze(ctx context.Context, p *persona.Persona, history []chat.Message, userMessage, reply string) Guidance {
	if !s.Enabled() {
		return s.fallbackGuidance(userMessage, reply)
	}

	msg, err := s.classifier.Invoke(ctx, map[string]any{
		"persona":      summarizePersona(p),
		"history":      formatHistory(history, s.historyLimit),
		"user_message": strings.TrimSpace(userMessage),
		"reply":        strings.TrimSpace(reply),
	})
	if err != nil {
		s.logger.Warn("[emotion] classifier invoke failed, use fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, reply)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackGuidance(userMessage, reply)
	}

	result, err := parseClassifierOutput(msg.Content)
	if err != nil {
		s.logger.Warn("[emotion] classifier output parse failed, use fallback", zap.Error(err))
		return s.fallbackGuidance(userMessage, reply)
	}

	label, ok := vocab.Canonicalize(result.Emotion)
	if !ok {
		s.logger.Debug("[emotion] classifier returned unknown label", zap.String("emotion", result.Emotion))
		return s.fallbackGuidance(userMessage, reply)
	}

	intensity := clampIntensity(result.Intensity)
	confidence := result.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Guidance{
		Decision: analysis.Decision{
			Emotion:   label,
			Intensity: intensity,
			Score:     int(intensity * 10),
		},
		Confidence: confidence,
		Reason:     strings.TrimSpace(result.Reason),
	}
}

func (s *Service) fallbackGuidance(userMessage, reply string) Guidance {
	decision := s.fallback(userMessage, reply)
	confidence := 0.3
	if decision.Score > 0 {
		confidence = 0.55
	}
	return Guidance{Decision: decision, Confidence: confidence, Reason: "fallback"}
}

// parseClassifierOutput 取出模型输出中的第一个 JSON 对象。
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func summarizePersona(p *persona.Persona) string {
	if p == nil {
		return "No particular character."
	}

	sections := []string{
		"Name: " + strings.TrimSpace(p.Name),
		"Title: " + strings.TrimSpace(p.Title),
	}
	if tone := strings.TrimSpace(p.Tone); tone != "" {
		sections = append(sections, "Tone: "+tone)
	}
	return strings.Join(sections, " | ")
}

func formatHistory(messages []chat.Message, limit int) string {
	const none = "No earlier messages."
	if len(messages) == 0 {
		return none
	}
	if limit < 1 {
		limit = 1
	}
	start := len(messages) - limit
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		text := strings.TrimSpace(msg.Text)
		if text == "" {
			continue
		}
		role := "User"
		if msg.Sender == chat.SenderBot {
			role = "Character"
		}
		lines = append(lines, role+": "+text)
	}
	if len(lines) == 0 {
		return none
	}
	return strings.Join(lines, "\n")
}

func clampIntensity(v float64) float64 {
	switch {
	case v <= 0:
		return vocab.DefaultIntensity
	case v > 1:
		return 1
	default:
		return v
	}
}

type classifierPayload struct {
	Emotion    string  `json:"emotion"`
	Intensity  float64 `json:"intensity"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

var classifierSystemPrompt = "You label the emotion a character expresses in a chat reply. " +
	"Read the character summary, the recent messages, the user's message and the character's reply. " +
	"Answer with a single JSON object and nothing else, with the fields: " +
	`emotion (one of ` + labelList() + `), ` +
	"intensity (a number between 0 and 1), confidence (a number between 0 and 1), reason (one short sentence)."

const classifierUserPrompt = "Character:\n{persona}\n\nRecent messages:\n{history}\n\nUser message:\n{user_message}\n\nCharacter reply:\n{reply}\n\nReturn the JSON."

func labelList() string {
	labels := vocab.Labels()
	names := make([]string, len(labels))
	for i, l := range labels {
		names[i] = string(l)
	}
	return strings.Join(names, "/")
}
