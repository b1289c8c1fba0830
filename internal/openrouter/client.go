// Package openrouter implements the summarization model gateway on top of
// the OpenRouter API (OpenAI-compatible). Summarization picks a model
// uniformly at random from the configured candidate list, so relative
// weights are expressed by repeating entries in that list.
package openrouter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/edgard/concisely/internal/config"
)

// SummaryResult carries the outcome of one summarization call. Token and
// cost fields are nil when the provider omitted usage metadata.
type SummaryResult struct {
	Text         string
	Model        string
	InputTokens  *int64
	OutputTokens *int64
	Cost         *float64
}

// Client defines the interface for summarization model calls.
type Client interface {
	// Summarize sends the rendered prompt to a randomly selected model
	// from the configured list and returns the generated digest.
	Summarize(ctx context.Context, prompt string) (*SummaryResult, error)
}

type sdkClient struct {
	api    *openai.Client
	log    *slog.Logger
	models []string
	pick   func(n int) int
}

// NewClient creates a new OpenRouter-backed summarization client.
func NewClient(cfg config.OpenRouterConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openrouter API key is required")
	}
	if len(cfg.Models) == 0 {
		return nil, errors.New("at least one summarization model is required")
	}
	if log == nil {
		log = slog.Default()
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	logger := log.With("component", "openrouter_client")
	logger.Info("OpenRouter client initialized", "models", len(cfg.Models), "base_url", clientCfg.BaseURL)

	return &sdkClient{
		api:    openai.NewClientWithConfig(clientCfg),
		log:    logger,
		models: cfg.Models,
		pick:   rand.IntN,
	}, nil
}

// Summarize sends the rendered prompt to a randomly selected model.
func (c *sdkClient) Summarize(ctx context.Context, prompt string) (*SummaryResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("prompt is empty")
	}

	model := c.models[c.pick(len(c.models))]
	c.log.DebugContext(ctx, "Requesting summary", "model", model, "prompt_chars", len(prompt))

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		c.log.ErrorContext(ctx, "Summarization call failed", "model", model, "error", err)
		return nil, fmt.Errorf("summarization call to %s failed: %w", model, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, fmt.Errorf("summarization call to %s returned no content", model)
	}

	result := &SummaryResult{
		Text:  resp.Choices[0].Message.Content,
		Model: model,
	}

	// Usage metadata is optional on OpenRouter; zero values mean the
	// provider omitted it. The SDK does not expose OpenRouter's cost
	// field, so Cost stays nil here.
	if resp.Usage.PromptTokens > 0 {
		in := int64(resp.Usage.PromptTokens)
		result.InputTokens = &in
	}
	if resp.Usage.CompletionTokens > 0 {
		out := int64(resp.Usage.CompletionTokens)
		result.OutputTokens = &out
	}

	c.log.InfoContext(ctx, "Summary generated",
		"model", model,
		"summary_chars", len(result.Text),
		"input_tokens", resp.Usage.PromptTokens,
		"output_tokens", resp.Usage.CompletionTokens)
	return result, nil
}

// ShortModelName strips the vendor prefix from an OpenRouter model
// identifier: "anthropic/claude-sonnet-4.5" becomes "claude-sonnet-4.5".
func ShortModelName(model string) string {
	if idx := strings.LastIndex(model, "/"); idx >= 0 {
		return model[idx+1:]
	}
	return model
}
