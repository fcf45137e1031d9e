package submittransaction

import (
	"fmt"
	"time"

	"finhub-workers/internal/common/config"
	"finhub-workers/internal/models"
)

type Config struct {
	Enabled       bool
	MaxJobsActive int
	Timeout       time.Duration
	// Credentials is the integration user jobs are submitted as.
	Credentials models.Credentials
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       90 * time.Second,
	}
}

// LoadConfig reads the worker block and the Workday integration user.
func LoadConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if wcfg, ok := appConfig.Workers[TaskType]; ok {
		cfg.Enabled = wcfg.Enabled
		if wcfg.MaxJobsActive > 0 {
			cfg.MaxJobsActive = wcfg.MaxJobsActive
		}
		if wcfg.Timeout > 0 {
			cfg.Timeout = config.GetDuration(wcfg.Timeout)
		}
	}
	cfg.Credentials = appConfig.Workday.IntegrationCredentials()
	return cfg
}

// Validate checks the settings without echoing the integration secret.
func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if err := c.Credentials.Validate(); err != nil {
		return fmt.Errorf("workday integration user: %w", err)
	}
	return nil
}
