package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/halluprobe/internal/config"
)

// #region types

var (
	// ErrMissingAPIKey is returned when a backend's credential is not configured.
	ErrMissingAPIKey = errors.New("api key not set")
	// ErrUnknownProvider is returned for a backend name New does not know.
	ErrUnknownProvider = errors.New("unknown provider")
)

// Completion is the verbatim text a model returned for one prompt.
type Completion struct {
	Text    string
	Latency time.Duration
}

// Options are the sampling settings shared by every backend.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// DefaultOptions matches the settings the experiment was designed around.
func DefaultOptions() Options {
	return Options{MaxTokens: 256, Temperature: 0}
}

// Client sends a single prompt to a model endpoint. Implementations are safe
// for concurrent use and do not retry.
type Client interface {
	Name() string
	Model() string
	Complete(ctx context.Context, prompt string) (Completion, error)
	Close() error
}

// #endregion types

// #region factory

// New builds the backend selected by cfg.Provider.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	opts := Options{MaxTokens: cfg.Generation.MaxTokens, Temperature: cfg.Generation.Temperature}
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.OpenAI, opts)
	case "anthropic":
		return NewAnthropicClient(cfg.Anthropic, opts)
	case "gemini":
		return NewGeminiClient(ctx, cfg.Gemini, opts)
	case "codec":
		return NewCodecClient(cfg.Codec, opts)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
}

// SetModel overrides the model of the backend cfg.Provider selects.
func SetModel(cfg *config.Config, model string) {
	if model == "" {
		return
	}
	switch cfg.Provider {
	case "openai":
		cfg.OpenAI.Model = model
	case "anthropic":
		cfg.Anthropic.Model = model
	case "gemini":
		cfg.Gemini.Model = model
	case "codec":
		cfg.Codec.Model = model
	}
}

// #endregion factory

func since(start time.Time, text string) Completion {
	return Completion{Text: text, Latency: time.Since(start)}
}
