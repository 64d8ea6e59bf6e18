package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	c := Default()
	assert.Equal(t, "http://127.0.0.1:1234/v1/chat/completions", c.LLM.Endpoint)
	assert.Equal(t, "lm-studio", c.LLM.APIKey)
	assert.Equal(t, 0.7, c.LLM.Temperature)
	assert.Equal(t, 2048, c.LLM.MaxTokens)
	assert.Equal(t, 150*time.Second, c.LLM.Timeout)
	assert.True(t, c.TTS.EnabledByDefault)
	assert.Equal(t, "male", c.TTS.VoicePreference)
	assert.Equal(t, 160, c.TTS.Rate)
	assert.Equal(t, 500*time.Millisecond, c.STT.Calibration)
	assert.Equal(t, 10*time.Second, c.STT.PhraseLimit)
	assert.Equal(t, []string{"exit_nova", "exit"}, c.UI.ExitCommands)
	assert.Equal(t, "0.0.0.0:5000", c.Mirror.Addr)
	assert.Equal(t, "novachat.turns", c.Events.Topic)
	assert.False(t, c.Events.Redis.Enabled)
	assert.Equal(t, "localhost:6379", c.Events.Redis.Addr)
	assert.NoError(t, c.Validate())
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: qwen2.5-7b-instruct
  temperature: 1
  timeout: 30s
tts:
  enabled_by_default: false
events:
  redis:
    enabled: true
`), 0o600))
	t.Setenv("NOVACHAT_LLM_API_KEY", "sk-from-env")
	t.Setenv("NOVACHAT_MIRROR_ENABLED", "true")

	c, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, "qwen2.5-7b-instruct", c.LLM.Model)
	assert.Equal(t, 1.0, c.LLM.Temperature)
	assert.Equal(t, 30*time.Second, c.LLM.Timeout)
	assert.Equal(t, "sk-from-env", c.LLM.APIKey)
	assert.False(t, c.TTS.EnabledByDefault)
	assert.True(t, c.Mirror.Enabled)
	assert.True(t, c.Events.Redis.Enabled)
	// untouched keys keep their defaults
	assert.Equal(t, 2048, c.LLM.MaxTokens)
	assert.Equal(t, "novachat", c.Events.Redis.Group)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  max_tokens: 0\n  endpoint: \"\"\n"), 0o600))
	_, err := Load(NewViper(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.max_tokens")
	assert.Contains(t, err.Error(), "llm.endpoint")
}

func TestLoadRejectsEmptySystemPrompts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  system_prompt: \"\"\nmirror:\n  system_prompt: \"  \"\n"), 0o600))
	_, err := Load(NewViper(path))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "llm.system_prompt")
	assert.Contains(t, err.Error(), "mirror.system_prompt")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(NewViper(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestWriteDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefault(path, false))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), "timeout: 150s")

	c, err := Load(NewViper(path))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)

	assert.Error(t, WriteDefault(path, false))
	assert.NoError(t, WriteDefault(path, true))
}
