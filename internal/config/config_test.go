package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for key, env := range conventionalEnv {
		t.Setenv(env, "")
		os.Unsetenv(env)
		prefixed := EnvPrefix + "_" + envKey(key)
		t.Setenv(prefixed, "")
		os.Unsetenv(prefixed)
	}
}

func envKey(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 4, cfg.Generation.Concurrency)
	assert.Equal(t, 256, cfg.Generation.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 1.0, cfg.Scoring.MatchThreshold)
	assert.Equal(t, "results/scored.csv", cfg.Paths.Scored)
	assert.False(t, cfg.Check.Enabled())
	assert.Equal(t, prompt.All, cfg.Conditions())
}

func TestLoad_FileAndEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "halluprobe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
provider: anthropic
anthropic:
  model: claude-test
generation:
  concurrency: 8
  timeout: 15s
  conditions: [baseline, abstain]
scoring:
  match_threshold: 0.85
check:
  max_hallucination_rate: 0.3
`), 0644))

	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
	t.Setenv("HALLUPROBE_GENERATION_MAX_TOKENS", "128")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "claude-test", cfg.Anthropic.Model)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.APIKey)
	assert.Equal(t, 8, cfg.Generation.Concurrency)
	assert.Equal(t, 15*time.Second, cfg.Generation.Timeout)
	assert.Equal(t, 128, cfg.Generation.MaxTokens)
	assert.Equal(t, 0.85, cfg.Scoring.MatchThreshold)
	assert.Equal(t, 0.3, cfg.Check.MaxHallucinationRate)
	assert.Equal(t, []prompt.Condition{prompt.Baseline, prompt.AbstainIfUnsure}, cfg.Conditions())
}

func TestLoad_PrefixedEnvBeatsConventional(t *testing.T) {
	clearEnv(t)
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("HALLUPROBE_PROVIDER", "codec")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "codec", cfg.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"provider", func(c *Config) { c.Provider = "cohere" }},
		{"concurrency", func(c *Config) { c.Generation.Concurrency = 0 }},
		{"rate", func(c *Config) { c.Generation.RatePerSecond = -1 }},
		{"max tokens", func(c *Config) { c.Generation.MaxTokens = 0 }},
		{"temperature", func(c *Config) { c.Generation.Temperature = 3 }},
		{"conditions", func(c *Config) { c.Generation.Conditions = []string{"socratic"} }},
		{"threshold zero", func(c *Config) { c.Scoring.MatchThreshold = 0 }},
		{"threshold high", func(c *Config) { c.Scoring.MatchThreshold = 1.2 }},
		{"check", func(c *Config) { c.Check.MinAccuracy = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, base.Validate())
}
