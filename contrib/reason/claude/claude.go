// Package claude backs the reasoning-service seam with the Anthropic API.
package claude

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
	"github.com/triagehq/triage/reason"
)

// Config holds Claude client configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns a low-temperature configuration suited to the
// pipeline's JSON-only prompts.
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey:      apiKey,
		Model:       "claude-3-5-haiku-20241022",
		MaxTokens:   1024,
		Temperature: 0.1,
	}
}

// Client implements reason.Client for Claude.
type Client struct {
	config *Config
	client anthropic.Client
}

// New creates a Claude reasoning client using the official SDK.
func New(config *Config) *Client {
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 1024
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		config: config,
		client: anthropic.NewClient(options...),
	}
}

// Generate implements reason.Client.
func (c *Client) Generate(ctx context.Context, req *reason.Request) (*reason.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	temperature := c.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	apiMessage, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Claude API error: %w", err)
	}

	var text string
	for _, content := range apiMessage.Content {
		if content.Type == "text" {
			text += content.Text
		}
	}

	return &reason.Response{
		Content: text,
		Model:   c.config.Model,
	}, nil
}
