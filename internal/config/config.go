package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres or memory
	DSN    string `mapstructure:"dsn"`    // Connection string
}

// FetchConfig holds outbound HTTP settings
type FetchConfig struct {
	UserAgent         string        `mapstructure:"user_agent"`
	Timeout           time.Duration `mapstructure:"timeout"`
	EnrichTimeout     time.Duration `mapstructure:"enrich_timeout"` // article page downloads
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timezone          string        `mapstructure:"timezone"` // applied to naive timestamps
}

// SchedulerConfig holds dispatch settings
type SchedulerConfig struct {
	DispatchCron string `mapstructure:"dispatch_cron"`
	BatchSize    int    `mapstructure:"batch_size"`
	MaxWorkers   int    `mapstructure:"max_workers"`
}

// RetryConfig holds per-feed retry settings
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// QueueConfig selects how batches reach workers
type QueueConfig struct {
	Mode    string   `mapstructure:"mode"` // local or kafka
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

// ServerConfig holds health server settings
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or console
	Output string `mapstructure:"output"` // stdout or file path
}

// FeedsConfig points at the feed definitions file
type FeedsConfig struct {
	File string `mapstructure:"file"`
}

// Queue modes
const (
	QueueLocal = "local"
	QueueKafka = "kafka"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	// Load .env file if present (ignore errors if not found)
	_ = godotenv.Load()
	_ = godotenv.Load(".env.local")

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".feed-collector"))
		}
	}

	v.SetEnvPrefix("COLLECTOR")
	v.AutomaticEnv()

	// Explicit bindings for nested keys (Viper doesn't auto-bind underscored nested keys)
	v.BindEnv("database.driver", "COLLECTOR_DATABASE_DRIVER")
	v.BindEnv("database.dsn", "COLLECTOR_DATABASE_DSN")
	v.BindEnv("fetch.user_agent", "COLLECTOR_FETCH_USER_AGENT")
	v.BindEnv("fetch.timezone", "COLLECTOR_FETCH_TIMEZONE")
	v.BindEnv("scheduler.dispatch_cron", "COLLECTOR_SCHEDULER_DISPATCH_CRON")
	v.BindEnv("scheduler.batch_size", "COLLECTOR_SCHEDULER_BATCH_SIZE")
	v.BindEnv("scheduler.max_workers", "COLLECTOR_SCHEDULER_MAX_WORKERS")
	v.BindEnv("queue.mode", "COLLECTOR_QUEUE_MODE")
	v.BindEnv("queue.brokers", "COLLECTOR_QUEUE_BROKERS")
	v.BindEnv("queue.topic", "COLLECTOR_QUEUE_TOPIC")
	v.BindEnv("server.port", "COLLECTOR_SERVER_PORT", "PORT")
	v.BindEnv("logging.level", "COLLECTOR_LOGGING_LEVEL")
	v.BindEnv("feeds.file", "COLLECTOR_FEEDS_FILE")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/collector.db")

	v.SetDefault("fetch.user_agent", "feed-collector/1.0 (+https://github.com/feed-collector)")
	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.enrich_timeout", 10*time.Second)
	v.SetDefault("fetch.requests_per_second", 2.0)
	v.SetDefault("fetch.burst", 4)
	v.SetDefault("fetch.timezone", "UTC")

	v.SetDefault("scheduler.dispatch_cron", "*/5 * * * *") // Every 5 minutes
	v.SetDefault("scheduler.batch_size", 10)
	v.SetDefault("scheduler.max_workers", 5)

	v.SetDefault("retry.max_attempts", 4)
	v.SetDefault("retry.base_delay", 10*time.Second)
	v.SetDefault("retry.max_delay", 2*time.Minute)

	v.SetDefault("queue.mode", QueueLocal)
	v.SetDefault("queue.topic", "feed-batches")
	v.SetDefault("queue.group_id", "feed-collector")

	v.SetDefault("server.port", "10000")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("feeds.file", "./configs/feeds.yaml")
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Scheduler.BatchSize < 1 {
		return errors.New("scheduler.batch_size must be positive")
	}
	if c.Scheduler.MaxWorkers < 1 {
		return errors.New("scheduler.max_workers must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New("retry.max_attempts must be positive")
	}
	if c.Fetch.Timeout <= 0 {
		return errors.New("fetch.timeout must be positive")
	}
	if _, err := time.LoadLocation(c.Fetch.Timezone); err != nil {
		return fmt.Errorf("fetch.timezone: %w", err)
	}
	switch c.Queue.Mode {
	case QueueLocal:
	case QueueKafka:
		if len(c.Queue.Brokers) == 0 {
			return errors.New("queue.brokers is required in kafka mode")
		}
		if c.Queue.Topic == "" {
			return errors.New("queue.topic is required in kafka mode")
		}
	default:
		return fmt.Errorf("unknown queue.mode %q", c.Queue.Mode)
	}
	return nil
}

// Location returns the timezone applied to naive timestamps
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Fetch.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
