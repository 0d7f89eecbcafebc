package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"go.uber.org/zap"

	"github.com/zhouzirui/moodchat/internal/config"
	"github.com/zhouzirui/moodchat/internal/model/chat"
	"github.com/zhouzirui/moodchat/internal/model/persona"
)

const maxOutputTokens = 1500

const structuredInstruction = `Answer with a JSON object containing your reply, your current emotional state and its intensity between 0.0 and 1.0.
Valid emotions: ` + validEmotionList

type structuredReply struct {
	Reply     string  `json:"reply" jsonschema:"required,description=What the character says to the user"`
	Emotion   string  `json:"emotion" jsonschema:"required,description=The character's current emotion"`
	Intensity float64 `json:"intensity" jsonschema:"required,minimum=0,maximum=1"`
}

var replySchema = generateSchema[structuredReply]()

// OpenAI answers through the Responses API of any OpenAI-compatible endpoint
// using structured JSON output.
type OpenAI struct {
	client  *openai.Client
	model   string
	persona persona.Persona
	prompts *PromptBuilder
	logger  *zap.Logger
}

// NewOpenAI creates a replier from cfg. Extra request options are appended
// after the ones derived from cfg.
func NewOpenAI(cfg config.AIConfig, p persona.Persona, logger *zap.Logger, extra ...option.RequestOption) (*OpenAI, error) {
	if !cfg.OpenAIEnabled() {
		return nil, errors.New("OPENAI_API_KEY and OPENAI_MODEL are required for the openai provider")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.OpenAIAPIKey)}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAIBaseURL))
	}
	opts = append(opts, extra...)

	client := openai.NewClient(opts...)
	return &OpenAI{
		client:  &client,
		model:   cfg.OpenAIModel,
		persona: p,
		prompts: NewPromptBuilder(),
		logger:  logger,
	}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Reply(ctx context.Context, req Request) (Reply, error) {
	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:        "CharacterReply",
			Schema:      replySchema,
			Strict:      openai.Bool(true),
			Description: openai.String("Character reply with emotional state"),
			Type:        "json_schema",
		},
	}

	params := responses.ResponseNewParams{
		Model:           o.model,
		MaxOutputTokens: openai.Int(maxOutputTokens),
		Instructions:    openai.String(o.prompts.Build(o.persona, req.Memories, req.Prompt) + "\n\n" + structuredInstruction),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: buildInputItems(req),
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return Reply{}, fmt.Errorf("openai request failed: %w", err)
	}

	text := resp.OutputText()
	if strings.TrimSpace(text) == "" {
		return Reply{Text: "No response generated", Emotion: fallbackEmotion, Intensity: fallbackIntensity}, nil
	}

	var out structuredReply
	if err := decodeModelJSON(text, &out); err != nil {
		// some compatible endpoints ignore the schema and answer in prose
		o.logger.Warn("[ai] structured output not honored, parsing markers", zap.Error(err))
		return ParseMarkers(text), nil
	}

	emotion, intensity := normalizeEmotion(out.Emotion, out.Intensity)
	return Reply{
		Text:      StripMarkers(out.Reply),
		Emotion:   emotion,
		Intensity: intensity,
	}, nil
}

func buildInputItems(req Request) []responses.ResponseInputItemUnionParam {
	history := trimHistory(req.History)
	items := make([]responses.ResponseInputItemUnionParam, 0, len(history)+1)
	for _, msg := range history {
		switch msg.Sender {
		case chat.SenderUser:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Text, responses.EasyInputMessageRoleUser))
		case chat.SenderBot:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Text, responses.EasyInputMessageRoleAssistant))
		}
	}
	return append(items, responses.ResponseInputItemParamOfMessage(req.Message, responses.EasyInputMessageRoleUser))
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)

	b, err := schema.MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	m["additionalProperties"] = false
	return m
}

func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return io.ErrUnexpectedEOF
	}

	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("failed to unmarshal extracted JSON: %w", err)
	}
	return nil
}
