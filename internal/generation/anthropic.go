package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"brokerage-insights/internal/common/config"
)

// AnthropicGenerator uses the Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

func NewAnthropic(cfg config.GenerationConfig) *AnthropicGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (g *AnthropicGenerator) Provider() string { return config.ProviderAnthropic }

func (g *AnthropicGenerator) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", transient(g.Provider(), apiErr.StatusCode, err)
		}
		return "", transient(g.Provider(), 0, err)
	}

	var b strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", permanent(g.Provider(), ErrEmptyCompletion)
	}
	return b.String(), nil
}
