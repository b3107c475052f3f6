package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Payment    PaymentConfig    `yaml:"payment"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Google     GoogleConfig     `yaml:"google"`
	Booking    BookingConfig    `yaml:"booking"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS    float64               `yaml:"rps"`
	Burst  int                   `yaml:"burst"`
	Shared SharedRateLimitConfig `yaml:"shared"`
}

// SharedRateLimitConfig configures the fleet-wide limiter backed by Redis.
// The in-process limiter alone only holds for a single-instance deployment.
type SharedRateLimitConfig struct {
	Enabled       bool `yaml:"enabled"`
	Requests      int  `yaml:"requests"`
	WindowSeconds int  `yaml:"window_seconds"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type PaymentConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BaseURL        string `yaml:"base_url"`
	AccessToken    string `yaml:"access_token"`
	SuccessURL     string `yaml:"success_url"`
	FailureURL     string `yaml:"failure_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
}

type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
}

type BookingConfig struct {
	Cleanup CleanupConfig `yaml:"cleanup"`
}

// CleanupConfig controls the optional expired-hold janitor. Expiry is
// correctness-neutral either way; the janitor only bounds storage growth.
type CleanupConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalMinutes int  `yaml:"interval_minutes"`
	RetentionHours  int  `yaml:"retention_hours"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional; environment may already be set by the deployment.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Payment.Enabled {
		if c.Payment.AccessToken == "" {
			return errors.New("payment.access_token is required when payment is enabled")
		}
		if c.Payment.BaseURL == "" {
			return errors.New("payment.base_url is required when payment is enabled")
		}
	}

	if c.API.Auth.Enabled && len(c.API.Auth.APIKeys) == 0 {
		return errors.New("api.auth.api_keys must not be empty when auth is enabled")
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}
	if c.API.RateLimit.RPS == 0 {
		c.API.RateLimit.RPS = 10
	}
	if c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = 5
	}
	if c.API.RateLimit.Shared.Requests == 0 {
		c.API.RateLimit.Shared.Requests = 120
	}
	if c.API.RateLimit.Shared.WindowSeconds == 0 {
		c.API.RateLimit.Shared.WindowSeconds = 60
	}

	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Payment.TimeoutSeconds == 0 {
		c.Payment.TimeoutSeconds = 10
	}

	if c.Booking.Cleanup.IntervalMinutes == 0 {
		c.Booking.Cleanup.IntervalMinutes = 60
	}
	if c.Booking.Cleanup.RetentionHours == 0 {
		c.Booking.Cleanup.RetentionHours = 72
	}
}
