// Package openai backs the reasoning-service seam with the OpenAI chat API.
package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/triagehq/triage/reason"
)

// Config holds OpenAI client configuration.
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
		Model:       "gpt-4o-mini",
		MaxTokens:   1024,
		Temperature: 0.1,
	}
}

// Client implements reason.Client for OpenAI.
type Client struct {
	config *Config
	client openaisdk.Client
}

// New creates an OpenAI reasoning client using the official SDK.
func New(config *Config) *Client {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		config: config,
		client: openaisdk.NewClient(options...),
	}
}

// Generate implements reason.Client.
func (c *Client) Generate(ctx context.Context, req *reason.Request) (*reason.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	messages := make([]openaisdk.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openaisdk.SystemMessage(req.System))
	}
	messages = append(messages, openaisdk.UserMessage(req.User))

	params := openaisdk.ChatCompletionNewParams{
		Messages: messages,
		Model:    openaisdk.ChatModel(c.config.Model),
	}

	temperature := c.config.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if temperature > 0 {
		params.Temperature = param.NewOpt(temperature)
	}

	maxTokens := c.config.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(maxTokens)
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned from OpenAI")
	}

	return &reason.Response{
		Content: completion.Choices[0].Message.Content,
		Model:   c.config.Model,
	}, nil
}
