package provider

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/danielpatrickdp/halluprobe/internal/config"
)

// #region client-struct
// GeminiClient calls the Gemini API through the genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
	opts   Options
}

// #endregion client-struct

// #region constructor
// NewGeminiClient builds a client against the Gemini API backend.
func NewGeminiClient(ctx context.Context, cfg config.GeminiConfig, opts Options) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: GEMINI_API_KEY: %w", ErrMissingAPIKey)
	}
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model, opts: opts}, nil
}

// #endregion constructor

func (c *GeminiClient) Name() string  { return "gemini" }
func (c *GeminiClient) Model() string { return c.model }
func (c *GeminiClient) Close() error  { return nil }

// #region complete
// Complete sends prompt as a single user content.
func (c *GeminiClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.opts.Temperature)),
		MaxOutputTokens: int32(c.opts.MaxTokens),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("gemini generate content: %w", err)
	}
	return since(start, resp.Text()), nil
}

// #endregion complete
