package provider

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/danielpatrickdp/halluprobe/internal/config"
)

// #region client-struct
// OpenAIClient calls the chat completions API of OpenAI or any compatible endpoint.
type OpenAIClient struct {
	client *openai.Client
	model  string
	opts   Options
}

// #endregion client-struct

// #region constructor
// NewOpenAIClient builds a client. BaseURL, when set, replaces the public endpoint.
func NewOpenAIClient(cfg config.OpenAIConfig, opts Options) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: OPENAI_API_KEY: %w", ErrMissingAPIKey)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		opts:   opts,
	}, nil
}

// #endregion constructor

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }
func (c *OpenAIClient) Close() error  { return nil }

// #region complete
// Complete sends prompt as a single user message.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()
	req := openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   c.opts.MaxTokens,
		Temperature: float32(c.opts.Temperature),
	}
	// temperature is omitempty on the wire; 0 would fall back to the server default of 1
	if req.Temperature == 0 {
		req.Temperature = math.SmallestNonzeroFloat32
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Completion{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("openai chat completion: no choices returned")
	}
	return since(start, resp.Choices[0].Message.Content), nil
}

// #endregion complete
