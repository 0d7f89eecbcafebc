package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MOODCHAT_CONFIG", "MOODCHAT_BASE_URL", "MOODCHAT_OVERLAP", "MOODCHAT_TIMEOUT",
		"MOODCHAT_REVEAL_INTERVAL", "MOODCHAT_POLL_INTERVAL", "MOODCHAT_PUSH", "MOODCHAT_DEV",
		"MOODCHAT_PROMPT_FILE", "MOODCHAT_LOG_LEVEL", "MOODCHAT_LOG_FILE", "MOODCHAT_LOG_DEV",
		"PORT", "AI_PROVIDER", "AI_EMOTION_CLASSIFIER", "PERSONA", "STORE_DRIVER",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.Client.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Client.Timeout)
	assert.Equal(t, "allow", cfg.Client.Overlap)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.Equal(t, "echo", cfg.AI.Provider)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, "charlotte", cfg.AI.Persona)
	assert.False(t, cfg.AI.EmotionClassifier)
}

func TestLoadYAMLOverlayThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "moodchat.yaml")
	yamlDoc := "client:\n  base_url: http://chat.local:9000/\n  overlap: queue\n  reveal_interval: 5ms\n  poll_interval: 2s\nlog:\n  level: debug\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	clearEnv(t)
	t.Setenv("MOODCHAT_CONFIG", path)
	t.Setenv("MOODCHAT_OVERLAP", "reject")
	t.Setenv("MOODCHAT_DEV", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://chat.local:9000", cfg.Client.BaseURL)
	assert.Equal(t, "reject", cfg.Client.Overlap)
	assert.Equal(t, 5*time.Millisecond, cfg.Client.RevealInterval)
	assert.Equal(t, 2*time.Second, cfg.Client.PollInterval)
	assert.True(t, cfg.Client.DevMode)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadMissingOverlayFileKeepsDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOODCHAT_CONFIG", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.Client.RevealInterval)
}

func TestOverlapPolicyIsNormalized(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOODCHAT_OVERLAP", " Queue ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "queue", cfg.Client.Overlap)

	t.Setenv("MOODCHAT_OVERLAP", "drop")
	_, err = Load()
	assert.ErrorContains(t, err, `unknown overlap policy "drop"`)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	clearEnv(t)

	t.Setenv("MOODCHAT_OVERLAP", "drop")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("MOODCHAT_OVERLAP", "")
	t.Setenv("MOODCHAT_TIMEOUT", "soon")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("MOODCHAT_TIMEOUT", "")
	t.Setenv("AI_PROVIDER", "bard")
	_, err = Load()
	assert.Error(t, err)

	t.Setenv("AI_PROVIDER", "")
	t.Setenv("AI_EMOTION_CLASSIFIER", "sometimes")
	_, err = Load()
	assert.Error(t, err)
}

func TestDevFlagIsLenient(t *testing.T) {
	clearEnv(t)
	t.Setenv("MOODCHAT_DEV", "definitely")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Client.DevMode)
}

func TestLoadServerConfig(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:7000")
	cfg, err := loadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.Addr)

	t.Setenv("PORT", "80 80")
	_, err = loadServerConfig()
	assert.Error(t, err)
}

func TestAIConfigEnabled(t *testing.T) {
	assert.False(t, AIConfig{}.ArkEnabled())
	assert.True(t, AIConfig{Model: "m", APIKey: "k"}.ArkEnabled())
	assert.True(t, AIConfig{Model: "m", AccessKey: "a", SecretKey: "s"}.ArkEnabled())
	assert.True(t, AIConfig{OpenAIAPIKey: "k", OpenAIModel: "gpt"}.OpenAIEnabled())
}
