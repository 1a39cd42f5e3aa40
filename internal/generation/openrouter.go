package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"brokerage-insights/internal/common/config"
	commonhttp "brokerage-insights/internal/common/http"
	"brokerage-insights/internal/common/logger"
	"brokerage-insights/internal/common/validation"
)

const maxErrorBody = 512

var completionSchema = validation.MustCompile("chat-completion", `{
  "type": "object",
  "required": ["choices"],
  "properties": {
    "choices": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["message"],
        "properties": {
          "message": {
            "type": "object",
            "required": ["content"],
            "properties": {"content": {"type": "string"}}
          }
        }
      }
    }
  }
}`)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// OpenRouterGenerator speaks the OpenAI-compatible chat completions protocol over plain HTTP.
type OpenRouterGenerator struct {
	client  *commonhttp.Client
	baseURL string
	model   string
	logger  logger.Logger
}

func NewOpenRouter(cfg config.GenerationConfig, log logger.Logger) *OpenRouterGenerator {
	client := commonhttp.NewClient(0).
		WithHeader("Authorization", "Bearer "+cfg.APIKey).
		WithHeader("HTTP-Referer", cfg.AppURL).
		WithHeader("X-Title", cfg.AppTitle)
	return &OpenRouterGenerator{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		logger:  log.Named("openrouter"),
	}
}

func (g *OpenRouterGenerator) Provider() string { return config.ProviderOpenRouter }

func (g *OpenRouterGenerator) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	body := chatRequest{
		Model:       g.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
		TopP:        1,
	}
	resp, err := g.client.PostJSON(ctx, g.baseURL+"/chat/completions", body)
	if err != nil {
		return "", transient(g.Provider(), 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transient(g.Provider(), resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", transient(g.Provider(), resp.StatusCode, fmt.Errorf("unexpected response: %s", truncate(raw)))
	}

	result, err := completionSchema.ValidateBytes(raw)
	if err != nil {
		return "", permanent(g.Provider(), fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	if err := result.Err(); err != nil {
		return "", permanent(g.Provider(), fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", permanent(g.Provider(), fmt.Errorf("%w: %v", ErrMalformedResponse, err))
	}
	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", permanent(g.Provider(), ErrEmptyCompletion)
	}
	return content, nil
}

func truncate(b []byte) string {
	if len(b) > maxErrorBody {
		return string(b[:maxErrorBody]) + "..."
	}
	return string(b)
}
