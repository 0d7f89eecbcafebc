package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"gopkg.in/yaml.v3"

	"github.com/zhouzirui/moodchat/internal/service/turn"
)

// Config 聚合客户端与开发后端的配置项。
type Config struct {
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"-"`
	Store  StoreConfig  `yaml:"-"`
	AI     AIConfig     `yaml:"-"`
}

// Load 依次应用默认值、MOODCHAT_CONFIG 指向的 YAML 文件和环境变量。
func Load() (*Config, error) {
	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("MOODCHAT_CONFIG")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	client, err := loadClientConfig(cfg.Client)
	if err != nil {
		return nil, err
	}

	logCfg, err := loadLogConfig(cfg.Log)
	if err != nil {
		return nil, err
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Client: client,
		Log:    logCfg,
		Server: server,
		Store:  loadStoreConfig(),
		AI:     ai,
	}, nil
}

// Default 返回未做任何覆盖时的配置。
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			BaseURL:        "http://localhost:5000",
			Timeout:        60 * time.Second,
			RevealInterval: 25 * time.Millisecond,
			Overlap:        "allow",
		},
		Log: LogConfig{Level: "info"},
	}
}

// overlayFile 读取 YAML 覆盖文件，文件不存在时保留默认值。
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return nil
}

// ClientConfig 描述终端客户端的行为。
type ClientConfig struct {
	BaseURL        string        `yaml:"base_url"`
	Timeout        time.Duration `yaml:"timeout"`
	RevealInterval time.Duration `yaml:"reveal_interval"`
	Overlap        string        `yaml:"overlap"`
	DevMode        bool          `yaml:"dev_mode"`
	// PollInterval 为 0 时不轮询 /current-emotion。
	PollInterval time.Duration `yaml:"poll_interval"`
	Push         bool          `yaml:"push"`
	PromptFile   string        `yaml:"prompt_file"`
}

func loadClientConfig(base ClientConfig) (ClientConfig, error) {
	cfg := base
	cfg.BaseURL = strings.TrimRight(getEnvOrDefault("MOODCHAT_BASE_URL", cfg.BaseURL), "/")
	cfg.Overlap = strings.ToLower(getEnvOrDefault("MOODCHAT_OVERLAP", cfg.Overlap))
	cfg.PromptFile = getEnvOrDefault("MOODCHAT_PROMPT_FILE", cfg.PromptFile)

	var err error
	if cfg.Timeout, err = parseDurationEnv("MOODCHAT_TIMEOUT", cfg.Timeout); err != nil {
		return ClientConfig{}, err
	}
	if cfg.RevealInterval, err = parseDurationEnv("MOODCHAT_REVEAL_INTERVAL", cfg.RevealInterval); err != nil {
		return ClientConfig{}, err
	}
	if cfg.PollInterval, err = parseDurationEnv("MOODCHAT_POLL_INTERVAL", cfg.PollInterval); err != nil {
		return ClientConfig{}, err
	}
	if cfg.Push, err = parseBoolEnv("MOODCHAT_PUSH", cfg.Push); err != nil {
		return ClientConfig{}, err
	}
	// 开发模式开关沿用前端的宽松写法，无法解析时视为关闭。
	if raw, ok := os.LookupEnv("MOODCHAT_DEV"); ok {
		cfg.DevMode, _ = strconv.ParseBool(strings.TrimSpace(raw))
	}

	policy, err := turn.ParseOverlapPolicy(cfg.Overlap)
	if err != nil {
		return ClientConfig{}, fmt.Errorf("invalid MOODCHAT_OVERLAP value: %w", err)
	}
	cfg.Overlap = string(policy)
	if cfg.Timeout <= 0 {
		return ClientConfig{}, fmt.Errorf("MOODCHAT_TIMEOUT must be positive, got %s", cfg.Timeout)
	}
	return cfg, nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
	Dev   bool   `yaml:"dev"`
}

func loadLogConfig(base LogConfig) (LogConfig, error) {
	cfg := base
	cfg.Level = getEnvOrDefault("MOODCHAT_LOG_LEVEL", cfg.Level)
	cfg.File = getEnvOrDefault("MOODCHAT_LOG_FILE", cfg.File)

	dev, err := parseBoolEnv("MOODCHAT_LOG_DEV", cfg.Dev)
	if err != nil {
		return LogConfig{}, err
	}
	cfg.Dev = dev
	return cfg, nil
}

// ServerConfig 描述开发后端的监听地址。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// StoreConfig 选择开发后端的持久化方式。
type StoreConfig struct {
	Driver string
	DSN    string
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		Driver: strings.ToLower(getEnvOrDefault("STORE_DRIVER", "memory")),
		DSN:    getEnvOrDefault("STORE_DSN", "moodchat.db"),
	}
}

// AIConfig 描述回复生成相关配置。
type AIConfig struct {
	// Provider 取值 echo、ark 或 openai。
	Provider string
	Persona  string

	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int

	// EmotionClassifier 为缺少情绪标记的回复额外调用一次模型进行分类。
	EmotionClassifier bool

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// ArkEnabled 表示是否提供了 Ark 必需的密钥。
func (c AIConfig) ArkEnabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// OpenAIEnabled 表示是否提供了 OpenAI 兼容接口的密钥。
func (c AIConfig) OpenAIEnabled() bool {
	return c.OpenAIAPIKey != "" && c.OpenAIModel != ""
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.ArkEnabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + Model 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	})
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	classifier, err := parseBoolEnv("AI_EMOTION_CLASSIFIER", false)
	if err != nil {
		return AIConfig{}, err
	}

	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", "echo"))
	switch provider {
	case "echo", "ark", "openai":
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	return AIConfig{
		Provider:          provider,
		Persona:           getEnvOrDefault("PERSONA", "charlotte"),
		APIKey:            strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:         strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:         strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:             strings.TrimSpace(os.Getenv("Model")),
		BaseURL:           getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:            getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:       temperature,
		TopP:              topP,
		MaxTokens:         maxTokens,
		EmotionClassifier: classifier,
		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIBaseURL:     strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		OpenAIModel:       getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
