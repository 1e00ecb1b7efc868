package stubapi

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the stub backend's configuration
type Config struct {
	Port         int           `envconfig:"STUB_PORT" default:"9090"`
	ProcessDelay time.Duration `envconfig:"STUB_PROCESS_DELAY" default:"3s"`
	WebBaseURL   string        `envconfig:"WEB_BASE_URL" default:"https://app.vidlib.example"`
	OpenAIKey    string        `envconfig:"OPENAI_API_KEY" default:""`
}

// LoadConfig loads the stub backend configuration from environment variables
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load stub config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("STUB_PORT must be between 1 and 65535")
	}
	if cfg.ProcessDelay < 0 {
		return nil, fmt.Errorf("STUB_PROCESS_DELAY must not be negative")
	}
	return &cfg, nil
}
