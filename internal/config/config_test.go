package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 4, cfg.Retry.MaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, QueueLocal, cfg.Queue.Mode)
	require.NoError(t, cfg.Validate())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "an explicit config path must exist")
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database:
  driver: postgres
  dsn: postgres://localhost/feeds
fetch:
  timeout: 15s
  timezone: Europe/Berlin
scheduler:
  batch_size: 25
queue:
  mode: kafka
  brokers: ["localhost:9092"]
`), 0o644))

	t.Setenv("COLLECTOR_SCHEDULER_MAX_WORKERS", "12")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 15*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 25, cfg.Scheduler.BatchSize)
	assert.Equal(t, 12, cfg.Scheduler.MaxWorkers)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Queue.Brokers)
	assert.Equal(t, "Europe/Berlin", cfg.Location().String())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Fetch:     FetchConfig{Timeout: time.Second, Timezone: "UTC"},
			Scheduler: SchedulerConfig{BatchSize: 10, MaxWorkers: 5},
			Retry:     RetryConfig{MaxAttempts: 4},
			Queue:     QueueConfig{Mode: QueueLocal},
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"batch size":    func(c *Config) { c.Scheduler.BatchSize = 0 },
		"workers":       func(c *Config) { c.Scheduler.MaxWorkers = -1 },
		"attempts":      func(c *Config) { c.Retry.MaxAttempts = 0 },
		"queue mode":    func(c *Config) { c.Queue.Mode = "rabbit" },
		"kafka brokers": func(c *Config) { c.Queue.Mode = QueueKafka; c.Queue.Topic = "t" },
		"timezone":      func(c *Config) { c.Fetch.Timezone = "Mars/Olympus" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
