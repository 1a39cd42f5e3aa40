package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brokerage-insights/internal/common/config"
	"brokerage-insights/internal/common/logger"
)

// ==========================
// Factory
// ==========================

func TestNew(t *testing.T) {
	log := logger.NewTestLogger(t)

	tests := []struct {
		name     string
		cfg      config.GenerationConfig
		provider string
		wantErr  error
	}{
		{name: "missing key", cfg: config.GenerationConfig{Provider: config.ProviderOpenRouter}, wantErr: ErrMissingCredential},
		{name: "unknown provider", cfg: config.GenerationConfig{Provider: "bard", APIKey: "k"}, wantErr: ErrUnsupportedProvider},
		{name: "openrouter", cfg: config.GenerationConfig{Provider: config.ProviderOpenRouter, APIKey: "k"}, provider: config.ProviderOpenRouter},
		{name: "openai", cfg: config.GenerationConfig{Provider: config.ProviderOpenAI, APIKey: "k"}, provider: config.ProviderOpenAI},
		{name: "anthropic", cfg: config.GenerationConfig{Provider: config.ProviderAnthropic, APIKey: "k"}, provider: config.ProviderAnthropic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen, err := New(tt.cfg, log)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, gen)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, gen.Provider())
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(transient("x", 503, errors.New("down"))))
	assert.False(t, IsTransient(permanent("x", ErrMalformedResponse)))
	assert.True(t, IsTransient(errors.New("connection reset")))
	assert.False(t, IsTransient(context.Canceled))
}

// ==========================
// OpenRouter
// ==========================

func openRouterConfig(url string) config.GenerationConfig {
	return config.GenerationConfig{
		Provider: config.ProviderOpenRouter,
		BaseURL:  url,
		APIKey:   "test-key",
		Model:    "anthropic/claude-3.5-sonnet",
		AppURL:   "https://insights.example.com",
		AppTitle: "Brokerage Insights",
	}
}

func TestOpenRouter_Complete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://insights.example.com", r.Header.Get("HTTP-Referer"))
		assert.Equal(t, "Brokerage Insights", r.Header.Get("X-Title"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"SELECT 1"}}]}`))
	}))
	defer srv.Close()

	gen := NewOpenRouter(openRouterConfig(srv.URL+"/"), logger.NewTestLogger(t))
	out, err := gen.Complete(context.Background(), "how much did I make", 800, 0.1)

	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", out)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", got.Model)
	assert.Equal(t, 800, got.MaxTokens)
	assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "how much did I make", got.Messages[0].Content)
}

func TestOpenRouter_Failures(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
		wantErr       error
	}{
		{name: "server error", status: http.StatusBadGateway, body: `upstream down`, wantTransient: true},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":"slow down"}`, wantTransient: true},
		{name: "not json", status: http.StatusOK, body: `<html>`, wantErr: ErrMalformedResponse},
		{name: "no choices", status: http.StatusOK, body: `{"choices":[]}`, wantErr: ErrMalformedResponse},
		{name: "empty content", status: http.StatusOK, body: `{"choices":[{"message":{"content":"  "}}]}`, wantErr: ErrEmptyCompletion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen := NewOpenRouter(openRouterConfig(srv.URL), logger.NewNoOpLogger())
			_, err := gen.Complete(context.Background(), "q", 10, 0)

			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, IsTransient(err))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			var genErr *Error
			require.True(t, errors.As(err, &genErr))
			assert.Equal(t, config.ProviderOpenRouter, genErr.Provider)
			if tt.wantTransient {
				assert.Equal(t, tt.status, genErr.StatusCode)
			}
		})
	}
}

func TestOpenRouter_NetworkErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gen := NewOpenRouter(openRouterConfig(url), logger.NewNoOpLogger())
	_, err := gen.Complete(context.Background(), "q", 10, 0)

	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

// ==========================
// OpenAI
// ==========================

func TestOpenAI_Complete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "SELECT 2"}}]
		}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(config.GenerationConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/"})
	out, err := gen.Complete(context.Background(), "prompt", 800, 0.1)

	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", out)
	assert.Equal(t, "gpt-4o-mini", got["model"])
	assert.EqualValues(t, 800, got["max_tokens"])
}

func TestOpenAI_StatusIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
	}))
	defer srv.Close()

	gen := NewOpenAI(config.GenerationConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: srv.URL + "/"})
	_, err := gen.Complete(context.Background(), "prompt", 10, 0)

	require.Error(t, err)
	assert.True(t, IsTransient(err))
	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, http.StatusServiceUnavailable, genErr.StatusCode)
}

// ==========================
// Anthropic
// ==========================

func TestAnthropic_Complete(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "ak-test", r.Header.Get("X-Api-Key"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-haiku-latest",
			"content": [{"type": "text", "text": "SELECT 3"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	gen := NewAnthropic(config.GenerationConfig{APIKey: "ak-test", Model: "claude-3-5-haiku-latest", BaseURL: srv.URL})
	out, err := gen.Complete(context.Background(), "prompt", 800, 0.1)

	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", out)
	assert.Equal(t, "claude-3-5-haiku-latest", got["model"])
	assert.EqualValues(t, 800, got["max_tokens"])
}

func TestAnthropic_EmptyContentIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_2","type":"message","role":"assistant","model":"m","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`))
	}))
	defer srv.Close()

	gen := NewAnthropic(config.GenerationConfig{APIKey: "ak-test", Model: "m", BaseURL: srv.URL})
	_, err := gen.Complete(context.Background(), "prompt", 10, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.False(t, IsTransient(err))
}
