// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App        AppConfig               `mapstructure:"app"`
	Camunda    CamundaConfig           `mapstructure:"camunda"`
	Database   DatabaseConfig          `mapstructure:"database"`
	Generation GenerationConfig        `mapstructure:"generation"`
	Identity   IdentityConfig          `mapstructure:"identity"`
	Pipeline   PipelineConfig          `mapstructure:"pipeline"`
	Workers    map[string]WorkerConfig `mapstructure:"workers"`
	Logging    LoggingConfig           `mapstructure:"logging"`
	Monitoring MonitoringConfig        `mapstructure:"monitoring"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Database        string `mapstructure:"database"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	MaxConnections  int    `mapstructure:"max_connections"`
	MaxIdle         int    `mapstructure:"max_idle"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // milliseconds
	SSLMode         string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

// Configured reports whether any Elasticsearch endpoint is set.
func (e ElasticsearchConfig) Configured() bool {
	return e.GetURL() != ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Pipeline Configuration Sections ---

// GenerationConfig selects and tunes the text-generation backend used for query synthesis.
type GenerationConfig struct {
	Provider    string  `mapstructure:"provider"` // openrouter | openai | anthropic
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     int     `mapstructure:"timeout"` // milliseconds, per attempt
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
	MaxAttempts int     `mapstructure:"max_attempts"`
	Backoff     int     `mapstructure:"backoff"` // milliseconds, fixed
	AppURL      string  `mapstructure:"app_url"`
	AppTitle    string  `mapstructure:"app_title"`

	RequireScopeParameter *bool `mapstructure:"require_scope_parameter"`
}

// ScopeParameterRequired defaults to true when unset.
func (g GenerationConfig) ScopeParameterRequired() bool {
	return g.RequireScopeParameter == nil || *g.RequireScopeParameter
}

// IdentityConfig controls caller identification.
type IdentityConfig struct {
	AssistantName string            `mapstructure:"assistant_name"`
	Directory     string            `mapstructure:"directory"` // static | redis
	RedisKey      string            `mapstructure:"redis_key"`
	CallerIDs     map[string]string `mapstructure:"caller_ids"`
	NameSearch    string            `mapstructure:"name_search"` // postgres | elasticsearch
	NameIndex     string            `mapstructure:"name_index"`
}

// PipelineConfig holds orchestrator settings.
type PipelineConfig struct {
	ExecutionTimeout int    `mapstructure:"execution_timeout"` // milliseconds
	LookupTimeout    int    `mapstructure:"lookup_timeout"`    // milliseconds, per identity strategy
	TemplateRegistry string `mapstructure:"template_registry"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MonitoringConfig holds the health/metrics listener and tracing settings.
type MonitoringConfig struct {
	Address     string  `mapstructure:"address"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}
