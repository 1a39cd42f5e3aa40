// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"

	DirectoryStatic = "static"
	DirectoryRedis  = "redis"

	NameSearchPostgres      = "postgres"
	NameSearchElasticsearch = "elasticsearch"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// GENERATION_API_KEY overrides generation.api_key
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	viper.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = viper.MergeInConfig()

	return finish(viper.GetViper())
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env"}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory to the nearest go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// expandEnvVars resolves ${VAR} placeholders left in string values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok || !strings.Contains(strVal, "$") {
			continue
		}
		if expanded := os.ExpandEnv(strVal); expanded != strVal && expanded != "" {
			v.Set(key, expanded)
		}
	}
}

// overrideEmptyConfig fills credentials from well-known env vars when the file left them blank.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Generation.APIKey == "" {
		for _, name := range providerKeyEnv(cfg.Generation.Provider) {
			if val := os.Getenv(name); val != "" {
				cfg.Generation.APIKey = val
				break
			}
		}
	}
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
	if cfg.Database.Redis.Address == "" {
		if val := os.Getenv("REDIS_ADDRESS"); val != "" {
			cfg.Database.Redis.Address = val
		}
	}
}

func providerKeyEnv(provider string) []string {
	switch provider {
	case ProviderOpenAI:
		return []string{"OPENAI_API_KEY"}
	case ProviderAnthropic:
		return []string{"ANTHROPIC_API_KEY"}
	default:
		return []string{"OPENROUTER_API_KEY"}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "brokerage-insights"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 60000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.ConnMaxLifetime == 0 {
		cfg.Database.Postgres.ConnMaxLifetime = 300000
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	g := &cfg.Generation
	if g.Provider == "" {
		g.Provider = ProviderOpenRouter
	}
	if g.BaseURL == "" && g.Provider == ProviderOpenRouter {
		g.BaseURL = "https://openrouter.ai/api/v1"
	}
	if g.Model == "" {
		switch g.Provider {
		case ProviderOpenAI:
			g.Model = "gpt-4o-mini"
		case ProviderAnthropic:
			g.Model = "claude-3-5-haiku-latest"
		default:
			g.Model = "anthropic/claude-3.5-sonnet"
		}
	}
	if g.Timeout == 0 {
		g.Timeout = 30000
	}
	if g.MaxTokens == 0 {
		g.MaxTokens = 800
	}
	if g.Temperature == 0 {
		g.Temperature = 0.1
	}
	if g.MaxAttempts == 0 {
		g.MaxAttempts = 3
	}
	if g.Backoff == 0 {
		g.Backoff = 2000
	}
	if g.AppTitle == "" {
		g.AppTitle = cfg.App.Name
	}

	if cfg.Identity.AssistantName == "" {
		cfg.Identity.AssistantName = "Jen"
	}
	if cfg.Identity.Directory == "" {
		cfg.Identity.Directory = DirectoryStatic
	}
	if cfg.Identity.RedisKey == "" {
		cfg.Identity.RedisKey = "insights:caller_ids"
	}
	if cfg.Identity.NameSearch == "" {
		cfg.Identity.NameSearch = NameSearchPostgres
	}
	if cfg.Identity.NameIndex == "" {
		cfg.Identity.NameIndex = "agents"
	}

	if cfg.Pipeline.ExecutionTimeout == 0 {
		cfg.Pipeline.ExecutionTimeout = 15000
	}
	if cfg.Pipeline.LookupTimeout == 0 {
		cfg.Pipeline.LookupTimeout = 5000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Monitoring.Address == "" {
		cfg.Monitoring.Address = ":8080"
	}
	if cfg.Monitoring.SampleRatio == 0 {
		cfg.Monitoring.SampleRatio = 1.0
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			worker.Timeout = 60000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.Enabled && cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required when camunda is enabled")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	switch cfg.Generation.Provider {
	case ProviderOpenRouter, ProviderOpenAI, ProviderAnthropic:
	default:
		return fmt.Errorf("generation.provider %q is not supported", cfg.Generation.Provider)
	}
	if cfg.Generation.MaxAttempts < 1 {
		return fmt.Errorf("generation.max_attempts must be at least 1")
	}

	switch cfg.Identity.Directory {
	case DirectoryStatic:
	case DirectoryRedis:
		if cfg.Database.Redis.Address == "" {
			return fmt.Errorf("database.redis.address is required for identity.directory=redis")
		}
	default:
		return fmt.Errorf("identity.directory %q is not supported", cfg.Identity.Directory)
	}

	switch cfg.Identity.NameSearch {
	case NameSearchPostgres:
	case NameSearchElasticsearch:
		if !cfg.Database.Elasticsearch.Configured() {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for identity.name_search=elasticsearch")
		}
	default:
		return fmt.Errorf("identity.name_search %q is not supported", cfg.Identity.NameSearch)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}
	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       60000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
