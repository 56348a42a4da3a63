package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/danielpatrickdp/halluprobe/internal/config"
)

// #region client-struct
// AnthropicClient calls the Anthropic Messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
	opts   Options
}

// #endregion client-struct

// #region constructor
// NewAnthropicClient builds a client with SDK retries disabled.
func NewAnthropicClient(cfg config.AnthropicConfig, opts Options) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: ANTHROPIC_API_KEY: %w", ErrMissingAPIKey)
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(reqOpts...),
		model:  cfg.Model,
		opts:   opts,
	}, nil
}

// #endregion constructor

func (c *AnthropicClient) Name() string  { return "anthropic" }
func (c *AnthropicClient) Model() string { return c.model }
func (c *AnthropicClient) Close() error  { return nil }

// #region complete
// Complete sends prompt as a single user turn and joins the returned text blocks.
func (c *AnthropicClient) Complete(ctx context.Context, prompt string) (Completion, error) {
	start := time.Now()
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.opts.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
		Temperature: anthropic.Float(c.opts.Temperature),
	})
	if err != nil {
		return Completion{}, fmt.Errorf("anthropic messages: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return since(start, b.String()), nil
}

// #endregion complete
