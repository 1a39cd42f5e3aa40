package generation

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"brokerage-insights/internal/common/config"
)

// OpenAIGenerator uses the official OpenAI SDK against the chat completions API.
type OpenAIGenerator struct {
	client openai.Client
	model  string
}

func NewOpenAI(cfg config.GenerationConfig) *OpenAIGenerator {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &OpenAIGenerator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (g *OpenAIGenerator) Provider() string { return config.ProviderOpenAI }

func (g *OpenAIGenerator) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(g.model),
		Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
		Temperature: openai.Float(temperature),
		MaxTokens:   openai.Int(int64(maxTokens)),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", transient(g.Provider(), apiErr.StatusCode, err)
		}
		return "", transient(g.Provider(), 0, err)
	}
	if len(completion.Choices) == 0 {
		return "", permanent(g.Provider(), ErrMalformedResponse)
	}

	content := completion.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", permanent(g.Provider(), ErrEmptyCompletion)
	}
	return content, nil
}
