package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/spf13/viper"
)

const VERSION = "1.2"

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Provider  ProviderConfig
	Limits    LimitsConfig
	Retry     RetryConfig
	Scheduler SchedulerConfig
	Webhook   WebhookConfig
	Templates TemplatesConfig
	LogLevel  string
	Version   string
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// ProviderConfig holds the Resend API settings.
type ProviderConfig struct {
	APIKey    string
	Endpoint  string
	FromEmail string
	FromName  string
	ReplyTo   string
	Timeout   time.Duration
}

type LimitsConfig struct {
	Daily     int
	PerMinute int
}

type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type SchedulerConfig struct {
	DefaultConcurrency int
}

type WebhookConfig struct {
	// Secret is the shared signing secret for provider callbacks. Required
	// when the webhook endpoint is exposed.
	Secret       string
	ReplayWindow time.Duration
}

type TemplatesConfig struct {
	Dir string
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// FromHeader renders the RFC 5322 From value.
func (p ProviderConfig) FromHeader() string {
	if p.FromName == "" {
		return p.FromEmail
	}
	return fmt.Sprintf("%s <%s>", p.FromName, p.FromEmail)
}

// LoadOptions contains options for loading configuration
type LoadOptions struct {
	EnvFile string // Optional environment file to load (e.g., ".env", ".env.test")
}

// Load loads the configuration with default options
func Load() (*Config, error) {
	// Try to load .env file but don't require it
	return LoadWithOptions(LoadOptions{EnvFile: ".env"})
}

// LoadWithOptions loads the configuration with the specified options
func LoadWithOptions(opts LoadOptions) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("SERVER_PORT", 8080)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mailcannon")
	v.SetDefault("DB_SSLMODE", "require")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("VERSION", VERSION)

	// Provider defaults
	v.SetDefault("RESEND_ENDPOINT", "https://api.resend.com")
	v.SetDefault("RESEND_TIMEOUT_SECONDS", 30)

	// Sending limits
	v.SetDefault("DAILY_LIMIT", 1000)
	v.SetDefault("PER_MINUTE_LIMIT", 60)

	// Retry policy
	v.SetDefault("RETRY_MAX_ATTEMPTS", 3)
	v.SetDefault("RETRY_BASE_SECONDS", 1.0)
	v.SetDefault("RETRY_MAX_SECONDS", 30.0)

	// Scheduler
	v.SetDefault("CONCURRENCY_DEFAULT", 10)

	// Webhook verification
	v.SetDefault("WEBHOOK_REPLAY_WINDOW_SECONDS", 300)

	// Templates
	v.SetDefault("TEMPLATES_DIR", "templates")

	// Load environment file if specified
	if opts.EnvFile != "" {
		v.SetConfigName(opts.EnvFile)
		v.SetConfigType("env")

		currentPath, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("error getting current directory: %w", err)
		}

		v.AddConfigPath(currentPath)

		if err := v.ReadInConfig(); err != nil {
			// It's okay if config file doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Read environment variables
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	apiKey := v.GetString("RESEND_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("RESEND_API_KEY is required")
	}

	fromEmail := strings.TrimSpace(v.GetString("FROM_EMAIL"))
	if fromEmail == "" {
		return nil, fmt.Errorf("FROM_EMAIL is required")
	}
	if !govalidator.IsEmail(fromEmail) {
		return nil, fmt.Errorf("FROM_EMAIL is not a valid email address: %s", fromEmail)
	}

	config := &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetInt("SERVER_PORT"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Provider: ProviderConfig{
			APIKey:    apiKey,
			Endpoint:  strings.TrimRight(v.GetString("RESEND_ENDPOINT"), "/"),
			FromEmail: fromEmail,
			FromName:  v.GetString("FROM_NAME"),
			ReplyTo:   v.GetString("REPLY_TO"),
			Timeout:   time.Duration(v.GetInt("RESEND_TIMEOUT_SECONDS")) * time.Second,
		},
		Limits: LimitsConfig{
			Daily:     v.GetInt("DAILY_LIMIT"),
			PerMinute: v.GetInt("PER_MINUTE_LIMIT"),
		},
		Retry: RetryConfig{
			MaxAttempts: v.GetInt("RETRY_MAX_ATTEMPTS"),
			BaseDelay:   secondsToDuration(v.GetFloat64("RETRY_BASE_SECONDS")),
			MaxDelay:    secondsToDuration(v.GetFloat64("RETRY_MAX_SECONDS")),
		},
		Scheduler: SchedulerConfig{
			DefaultConcurrency: v.GetInt("CONCURRENCY_DEFAULT"),
		},
		Webhook: WebhookConfig{
			Secret:       v.GetString("WEBHOOK_SECRET"),
			ReplayWindow: time.Duration(v.GetInt("WEBHOOK_REPLAY_WINDOW_SECONDS")) * time.Second,
		},
		Templates: TemplatesConfig{
			Dir: v.GetString("TEMPLATES_DIR"),
		},
		LogLevel: v.GetString("LOG_LEVEL"),
		Version:  v.GetString("VERSION"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks cross-field constraints that viper defaults cannot express.
func (c *Config) Validate() error {
	if c.Limits.Daily <= 0 {
		return fmt.Errorf("DAILY_LIMIT must be positive, got %d", c.Limits.Daily)
	}
	if c.Limits.PerMinute <= 0 {
		return fmt.Errorf("PER_MINUTE_LIMIT must be positive, got %d", c.Limits.PerMinute)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.BaseDelay <= 0 || c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("retry delays invalid: base=%s max=%s", c.Retry.BaseDelay, c.Retry.MaxDelay)
	}
	if c.Scheduler.DefaultConcurrency < 1 || c.Scheduler.DefaultConcurrency > 1000 {
		return fmt.Errorf("CONCURRENCY_DEFAULT must be in 1..1000, got %d", c.Scheduler.DefaultConcurrency)
	}
	if c.Webhook.ReplayWindow <= 0 {
		return fmt.Errorf("WEBHOOK_REPLAY_WINDOW_SECONDS must be positive")
	}
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
