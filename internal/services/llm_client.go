package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Completer produces a single text completion.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// LLMClient completes prompts through the Anthropic Messages API.
type LLMClient struct {
	client    anthropic.Client
	apiKey    string
	model     string
	maxTokens int64
}

// NewLLMClient builds a client for baseURL. An empty baseURL uses the SDK
// default. Extra options are appended last so callers can override retries
// or the transport.
func NewLLMClient(baseURL, apiKey, model string, maxTokens int, timeout time.Duration, opts ...option.RequestOption) *LLMClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
	}
	if baseURL != "" {
		base = append(base, option.WithBaseURL(baseURL))
	}

	return &LLMClient{
		client:    anthropic.NewClient(append(base, opts...)...),
		apiKey:    apiKey,
		model:     model,
		maxTokens: int64(maxTokens),
	}
}

func (c *LLMClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", errors.New("llm api key is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("llm request failed: status=%d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("llm response did not include text")
	}
	return sb.String(), nil
}
