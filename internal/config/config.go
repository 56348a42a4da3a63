package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/danielpatrickdp/halluprobe/internal/eval"
	"github.com/danielpatrickdp/halluprobe/internal/prompt"
)

// EnvPrefix prefixes every config key when read from the environment.
const EnvPrefix = "HALLUPROBE"

// #region types

// Config is the full runtime configuration. It is loaded once by the CLI and
// passed down explicitly.
type Config struct {
	Provider   string           `mapstructure:"provider"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Gemini     GeminiConfig     `mapstructure:"gemini"`
	Codec      CodecConfig      `mapstructure:"codec"`
	Generation GenerationConfig `mapstructure:"generation"`
	Scoring    ScoringConfig    `mapstructure:"scoring"`
	Paths      PathsConfig      `mapstructure:"paths"`
	Check      eval.EvalConfig  `mapstructure:"check"`
}

// OpenAIConfig configures the OpenAI backend. BaseURL points it at any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig configures the Anthropic backend.
type AnthropicConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// GeminiConfig configures the Gemini backend.
type GeminiConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// CodecConfig configures the gRPC inference backend.
type CodecConfig struct {
	Addr  string `mapstructure:"addr"`
	Model string `mapstructure:"model"`
}

// GenerationConfig controls the request fan-out.
type GenerationConfig struct {
	Concurrency   int           `mapstructure:"concurrency"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Temperature   float64       `mapstructure:"temperature"`
	Conditions    []string      `mapstructure:"conditions"`
}

// ScoringConfig controls the classifier.
type ScoringConfig struct {
	MatchThreshold    float64 `mapstructure:"match_threshold"`
	LexiconPath       string  `mapstructure:"lexicon_path"`
	EmptyIsAbstention bool    `mapstructure:"empty_is_abstention"`
}

// PathsConfig holds the default file locations for each pipeline stage.
type PathsConfig struct {
	Questions   string `mapstructure:"questions"`
	Generations string `mapstructure:"generations"`
	Scored      string `mapstructure:"scored"`
	Summary     string `mapstructure:"summary"`
	Plots       string `mapstructure:"plots"`
	DB          string `mapstructure:"db"`
}

// #endregion types

// #region defaults

// Providers lists the backend names provider.New accepts.
var Providers = []string{"openai", "anthropic", "gemini", "codec"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-3-5-sonnet-20241022")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("codec.addr", "localhost:50051")
	v.SetDefault("codec.model", "")

	v.SetDefault("generation.concurrency", 4)
	v.SetDefault("generation.rate_per_second", 0.0)
	v.SetDefault("generation.timeout", 60*time.Second)
	v.SetDefault("generation.max_tokens", 256)
	v.SetDefault("generation.temperature", 0.0)
	v.SetDefault("generation.conditions", []string{})

	v.SetDefault("scoring.match_threshold", 1.0)
	v.SetDefault("scoring.lexicon_path", "")
	v.SetDefault("scoring.empty_is_abstention", false)

	v.SetDefault("paths.questions", "data/questions.jsonl")
	v.SetDefault("paths.generations", "results/raw_generations.jsonl")
	v.SetDefault("paths.scored", "results/scored.csv")
	v.SetDefault("paths.summary", "results/summary.csv")
	v.SetDefault("paths.plots", "results/plots")
	v.SetDefault("paths.db", "")

	v.SetDefault("check.max_hallucination_rate", 0.0)
	v.SetDefault("check.min_accuracy", 0.0)
	v.SetDefault("check.max_calibration_error", 0.0)
}

// conventionalEnv maps keys to the unprefixed variables other tools already use.
var conventionalEnv = map[string]string{
	"provider":          "LLM_PROVIDER",
	"openai.api_key":    "OPENAI_API_KEY",
	"openai.model":      "OPENAI_MODEL",
	"openai.base_url":   "OPENAI_BASE_URL",
	"anthropic.api_key": "ANTHROPIC_API_KEY",
	"anthropic.model":   "ANTHROPIC_MODEL",
	"gemini.api_key":    "GEMINI_API_KEY",
	"gemini.model":      "GEMINI_MODEL",
	"codec.addr":        "CODEC_ADDR",
}

// #endregion defaults

// #region load

// Load builds a Config from defaults, the optional YAML file at path and the
// environment, in increasing precedence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range conventionalEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// #endregion load

// #region validate

// Validate checks ranges and enum values. Credentials are checked by the
// provider factory, since scoring and analysis never need them.
func (c *Config) Validate() error {
	known := false
	for _, p := range Providers {
		if c.Provider == p {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown provider %q (want one of %s)", c.Provider, strings.Join(Providers, ", "))
	}
	if c.Generation.Concurrency < 1 {
		return fmt.Errorf("generation.concurrency must be >= 1, got %d", c.Generation.Concurrency)
	}
	if c.Generation.RatePerSecond < 0 {
		return fmt.Errorf("generation.rate_per_second must be >= 0, got %v", c.Generation.RatePerSecond)
	}
	if c.Generation.Timeout < 0 {
		return fmt.Errorf("generation.timeout must be >= 0, got %v", c.Generation.Timeout)
	}
	if c.Generation.MaxTokens < 1 {
		return fmt.Errorf("generation.max_tokens must be >= 1, got %d", c.Generation.MaxTokens)
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("generation.temperature must be in [0, 2], got %v", c.Generation.Temperature)
	}
	if _, err := prompt.ParseConditions(c.Generation.Conditions); err != nil {
		return fmt.Errorf("generation.conditions: %w", err)
	}
	if c.Scoring.MatchThreshold <= 0 || c.Scoring.MatchThreshold > 1 {
		return fmt.Errorf("scoring.match_threshold must be in (0, 1], got %v", c.Scoring.MatchThreshold)
	}
	for name, v := range map[string]float64{
		"check.max_hallucination_rate": c.Check.MaxHallucinationRate,
		"check.min_accuracy":           c.Check.MinAccuracy,
		"check.max_calibration_error":  c.Check.MaxCalibrationError,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	return nil
}

// Conditions returns the configured prompting conditions, all by default.
func (c *Config) Conditions() []prompt.Condition {
	conds, err := prompt.ParseConditions(c.Generation.Conditions)
	if err != nil {
		return append([]prompt.Condition(nil), prompt.All...)
	}
	return conds
}

// #endregion validate
