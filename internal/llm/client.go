// Package llm wraps an OpenAI-compatible chat completion endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// Config holds connection settings for the completion client.
type Config struct {
	APIKey  string
	Model   string
	BaseURL string // empty means the public OpenAI endpoint
}

// Client issues chat completions against an OpenAI-compatible API.
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

const (
	completionTemperature = 0.1
	maxAttempts           = 3
	initialBackoff        = 2 * time.Second
)

func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}

	return &Client{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		logger: logger.With().Str("component", "llm").Logger(),
	}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Complete sends one system+user exchange and returns the assistant text.
// Transient failures are retried with doubling backoff.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: system},
		{Role: openai.ChatMessageRoleUser, Content: user},
	}

	backoff := initialBackoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		start := time.Now()
		resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       c.model,
			Messages:    messages,
			Temperature: completionTemperature,
		})
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", fmt.Errorf("no choices in completion response")
			}
			c.logger.Debug().
				Int("prompt_tokens", resp.Usage.PromptTokens).
				Int("completion_tokens", resp.Usage.CompletionTokens).
				Dur("elapsed", time.Since(start)).
				Msg("completion finished")
			return resp.Choices[0].Message.Content, nil
		}

		lastErr = err
		c.logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Dur("elapsed", time.Since(start)).
			Msg("completion request failed")

		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", fmt.Errorf("completion failed after %d attempts: %w", maxAttempts, lastErr)
}
