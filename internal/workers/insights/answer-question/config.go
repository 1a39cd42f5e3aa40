package answerquestion

import (
	"time"

	"brokerage-insights/internal/common/config"
)

type Config struct {
	Timeout       time.Duration
	AssistantName string
	// RetryTransient fails the job for a zeebe retry when generation was unavailable
	// and the job still has retries left.
	RetryTransient bool
}

func LoadConfig(cfg *config.Config) *Config {
	wc := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		Timeout:        config.GetDuration(wc.Timeout),
		AssistantName:  cfg.Identity.AssistantName,
		RetryTransient: wc.MaxRetries > 0,
	}
}
