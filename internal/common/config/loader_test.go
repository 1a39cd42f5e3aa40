package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: brokerage
    user: reader
workers:
  answer-question:
    enabled: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("OPENROUTER_API_KEY", "")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "brokerage-insights", cfg.App.Name)
	assert.Equal(t, 5432, cfg.Database.Postgres.Port)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)

	g := cfg.Generation
	assert.Equal(t, ProviderOpenRouter, g.Provider)
	assert.Equal(t, "https://openrouter.ai/api/v1", g.BaseURL)
	assert.Equal(t, "anthropic/claude-3.5-sonnet", g.Model)
	assert.Equal(t, 3, g.MaxAttempts)
	assert.Equal(t, 2000, g.Backoff)
	assert.Equal(t, 800, g.MaxTokens)
	assert.InDelta(t, 0.1, g.Temperature, 1e-9)
	assert.True(t, g.ScopeParameterRequired())
	assert.Empty(t, g.APIKey)

	assert.Equal(t, "Jen", cfg.Identity.AssistantName)
	assert.Equal(t, DirectoryStatic, cfg.Identity.Directory)
	assert.Equal(t, NameSearchPostgres, cfg.Identity.NameSearch)
	assert.Equal(t, 15000, cfg.Pipeline.ExecutionTimeout)
	assert.Equal(t, 5000, cfg.Pipeline.LookupTimeout)
	assert.Equal(t, ":8080", cfg.Monitoring.Address)

	wc := GetWorkerConfig(cfg, "answer-question")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 5, wc.MaxJobsActive)
	assert.Equal(t, 60000, wc.Timeout)
	assert.Equal(t, 3, wc.MaxRetries)
}

func TestLoadFromFile_ProviderKeyFromEnvironment(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
generation:
  provider: anthropic
`))
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-test", cfg.Generation.APIKey)
	assert.Equal(t, "claude-3-5-haiku-latest", cfg.Generation.Model)
	assert.Empty(t, cfg.Generation.BaseURL)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("INSIGHTS_TEST_DB_PASSWORD", "s3cret")

	cfg, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    host: localhost
    database: brokerage
    user: reader
    password: ${INSIGHTS_TEST_DB_PASSWORD}
`))
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Database.Postgres.Password)
	assert.Contains(t, cfg.Database.Postgres.GetDSN(), "password=s3cret")
}

func TestLoadFromFile_ScopeHardeningCanBeDisabled(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
generation:
  require_scope_parameter: false
`))
	require.NoError(t, err)
	assert.False(t, cfg.Generation.ScopeParameterRequired())
}

func TestLoadFromFile_Invalid(t *testing.T) {
	t.Setenv("REDIS_ADDRESS", "")
	t.Setenv("DB_USER", "")

	tests := []struct {
		name string
		body string
	}{
		{"missing host", `
database:
  postgres:
    database: brokerage
    user: reader
`},
		{"missing user", `
database:
  postgres:
    host: localhost
    database: brokerage
`},
		{"unsupported provider", minimalYAML + `
generation:
  provider: cohere
`},
		{"redis directory without address", minimalYAML + `
identity:
  directory: redis
`},
		{"elasticsearch search without endpoint", minimalYAML + `
identity:
  name_search: elasticsearch
`},
		{"unknown directory", minimalYAML + `
identity:
  directory: ldap
`},
		{"camunda without broker", minimalYAML + `
camunda:
  enabled: true
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid configuration")
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestGetWorkerConfig_FallsBackToDefaults(t *testing.T) {
	wc := GetWorkerConfig(&Config{}, "answer-question")
	assert.True(t, wc.Enabled)
	assert.Equal(t, 60000, wc.Timeout)
	assert.True(t, IsWorkerEnabled(&Config{}, "answer-question"))
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}
