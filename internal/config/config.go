package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	Bot    BotConfig
	API    APIConfig
	DB     DBConfig
	Watch  WatchConfig
	Server ServerConfig
	Web    WebConfig
}

// BotConfig holds Telegram bot configuration
type BotConfig struct {
	Token          string        `envconfig:"BOT_TOKEN" required:"true"`
	Username       string        `envconfig:"BOT_USERNAME" default:"VidLibBot"`
	SearchDebounce time.Duration `envconfig:"BOT_SEARCH_DEBOUNCE" default:"300ms"`
}

// APIConfig holds settings for the backend API client
type APIConfig struct {
	BaseURL    string        `envconfig:"API_BASE_URL" required:"true"`
	Timeout    time.Duration `envconfig:"API_TIMEOUT" default:"30s"`
	RateLimit  float64       `envconfig:"API_RATE_LIMIT" default:"10"`
	MaxRetries int           `envconfig:"API_MAX_RETRIES" default:"3"`
	UserAgent  string        `envconfig:"API_USER_AGENT" default:"vidlib-bot/1.0"`
	ScenesTTL  time.Duration `envconfig:"API_SCENES_TTL" default:"5m"`
	PlansTTL   time.Duration `envconfig:"API_PLANS_TTL" default:"30m"`
}

// DBConfig holds database configuration for the bot's session store.
// An empty host selects the in-memory store (sessions lost on restart).
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:""`
	Port     int    `envconfig:"DB_PORT" default:"3306"`
	User     string `envconfig:"DB_USER" default:"root"`
	Password string `envconfig:"DB_PASSWORD" default:""`
	Database string `envconfig:"DB_NAME" default:"vidlib_bot"`
	MaxConns int    `envconfig:"DB_MAX_CONNS" default:"10"`
}

// WatchConfig holds settings for the upload status watcher
type WatchConfig struct {
	Enabled      bool          `envconfig:"WATCH_ENABLED" default:"true"`
	Interval     time.Duration `envconfig:"WATCH_INTERVAL" default:"30s"`
	InitialDelay time.Duration `envconfig:"WATCH_INITIAL_DELAY" default:"5s"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// WebConfig holds settings for deep links into the web player
type WebConfig struct {
	BaseURL string `envconfig:"WEB_BASE_URL" default:"https://app.vidlib.example"`
}

// DSN returns the MySQL data source name
func (c *DBConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database)
}

// InMemory reports whether the session store should run without a database
func (c *DBConfig) InMemory() bool {
	return c.Host == ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg.Bot); err != nil {
		return nil, fmt.Errorf("failed to load bot config: %w", err)
	}

	if err := envconfig.Process("", &cfg.API); err != nil {
		return nil, fmt.Errorf("failed to load api config: %w", err)
	}

	if err := envconfig.Process("", &cfg.DB); err != nil {
		return nil, fmt.Errorf("failed to load db config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Watch); err != nil {
		return nil, fmt.Errorf("failed to load watch config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Web); err != nil {
		return nil, fmt.Errorf("failed to load web config: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL")
	}
	if c.API.RateLimit <= 0 {
		return fmt.Errorf("API_RATE_LIMIT must be positive")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("API_MAX_RETRIES must not be negative")
	}
	if c.Bot.SearchDebounce <= 0 {
		return fmt.Errorf("BOT_SEARCH_DEBOUNCE must be positive")
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("WATCH_INTERVAL must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT must be between 1 and 65535")
	}
	if u, err := url.Parse(c.Web.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("WEB_BASE_URL must be an absolute URL")
	}
	return nil
}
