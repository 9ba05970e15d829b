// Package app wires configuration into the collector components shared by
// the scheduler daemon and the CLI.
package app

import (
	"context"
	"fmt"

	"github.com/feed-collector/internal/agent/collector"
	"github.com/feed-collector/internal/config"
	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/internal/queue"
	"github.com/feed-collector/internal/scheduler"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/internal/source/enrich"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/internal/storage/gormdb"
	"github.com/feed-collector/internal/storage/memory"
	"github.com/feed-collector/pkg/logger"
	"github.com/feed-collector/pkg/ratelimit"
)

// App holds the long-lived collaborators
type App struct {
	Config   *config.Config
	Log      *logger.Logger
	Repo     storage.Repository
	Registry *source.Registry
	Agent    *collector.Agent
	Batcher  *scheduler.Batcher
	Stats    *scheduler.Stats
	Limiter  *ratelimit.HostLimiter
}

// OpenRepository connects to the configured database
func OpenRepository(cfg config.DatabaseConfig) (storage.Repository, error) {
	if cfg.Driver == "memory" {
		return memory.New(), nil
	}
	return gormdb.New(cfg.Driver, cfg.DSN)
}

// New opens storage, runs migrations and builds the pipeline
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	repo, err := OpenRepository(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := repo.Migrate(); err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	limiter := ratelimit.NewHostLimiter(cfg.Fetch.RequestsPerSecond, cfg.Fetch.Burst)
	fetcher := source.NewHTTPFetcher(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, limiter)
	pageFetcher := source.NewHTTPFetcher(cfg.Fetch.EnrichTimeout, cfg.Fetch.UserAgent, limiter)

	registry := collector.DefaultRegistry(source.Deps{
		Dates:    normalize.NewDateNormalizer(cfg.Location()),
		Content:  normalize.NewContentNormalizer(),
		Enricher: enrich.New(pageFetcher, log),
		Log:      log,
	})

	agent := collector.NewAgent(registry, fetcher, repo, log)
	stats := scheduler.NewStats()
	batcher := scheduler.NewBatcher(repo, agent, scheduler.BatcherConfig{
		MaxWorkers: cfg.Scheduler.MaxWorkers,
		Retry: scheduler.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
		},
		Stats: stats,
	}, log)

	return &App{
		Config:   cfg,
		Log:      log,
		Repo:     repo,
		Registry: registry,
		Agent:    agent,
		Batcher:  batcher,
		Stats:    stats,
		Limiter:  limiter,
	}, nil
}

// Dispatcher returns the batch dispatcher for the configured queue mode and
// a function that drains or closes it.
func (a *App) Dispatcher(base context.Context) (scheduler.Dispatcher, func() error) {
	if a.Config.Queue.Mode == config.QueueKafka {
		d := queue.NewKafkaDispatcher(a.kafkaConfig(), a.Log)
		return d, d.Close
	}
	d := queue.NewLocalDispatcher(base, a.Batcher, a.Log)
	return d, func() error {
		d.Wait()
		return nil
	}
}

// Scheduler builds a scheduler around dispatcher
func (a *App) Scheduler(dispatcher scheduler.Dispatcher) *scheduler.Scheduler {
	return scheduler.New(a.Repo, dispatcher, a.Stats, a.Log)
}

// Consumer builds a Kafka batch consumer feeding the local batcher
func (a *App) Consumer() *queue.Consumer {
	return queue.NewConsumer(a.kafkaConfig(), a.Batcher, a.Log)
}

// SyncFeeds upserts the feed definitions file into storage
func (a *App) SyncFeeds(ctx context.Context, path string) (int, error) {
	feeds, err := config.LoadFeeds(path)
	if err != nil {
		return 0, err
	}
	for _, f := range feeds {
		if err := a.Repo.UpsertFeed(ctx, f); err != nil {
			return 0, fmt.Errorf("upsert feed %s: %w", f.URL, err)
		}
	}
	a.Log.Info().Int("feeds", len(feeds)).Str("file", path).Msg("Feeds synchronised")
	return len(feeds), nil
}

// Close releases storage
func (a *App) Close() error {
	return a.Repo.Close()
}

func (a *App) kafkaConfig() queue.KafkaConfig {
	return queue.KafkaConfig{
		Brokers: a.Config.Queue.Brokers,
		Topic:   a.Config.Queue.Topic,
		GroupID: a.Config.Queue.GroupID,
	}
}
