// internal/workers/ai-conversation/extract-intent/config.go
package extractintent

import (
	"time"

	"finhub-workers/internal/common/config"
)

type Config struct {
	GenAIBaseURL string
	APIKey       string
	Timeout      time.Duration
	MaxRetries   int
	// RetryBackoff is the first retry delay; it doubles per attempt.
	RetryBackoff time.Duration
}

func LoadConfig(appConfig *config.Config) *Config {
	return &Config{
		GenAIBaseURL: appConfig.APIs.GenAI.BaseURL,
		APIKey:       appConfig.APIs.GenAI.APIKey,
		Timeout:      config.GetDuration(appConfig.APIs.GenAI.Timeout),
		MaxRetries:   appConfig.APIs.GenAI.MaxRetries,
		RetryBackoff: 100 * time.Millisecond,
	}
}
