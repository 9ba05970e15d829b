package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/feed-collector/internal/app"
	"github.com/feed-collector/internal/config"
	"github.com/feed-collector/internal/health"
	"github.com/feed-collector/pkg/logger"
)

var (
	cfgFile    string
	withWorker bool
	syncFeeds  bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "collector-scheduler",
		Short: "Background scheduler for the feed collector",
		Long: `Periodically dispatches due feeds in batches and serves health checks.
With a kafka queue the batches are consumed by workers; pass --worker to run one in-process.`,
		RunE: runScheduler,
	}

	rootCmd.Flags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.Flags().BoolVar(&withWorker, "worker", false, "also consume batches from the kafka queue")
	rootCmd.Flags().BoolVar(&syncFeeds, "sync-feeds", true, "upsert the feeds file on startup")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScheduler(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	log.Info().Str("queue", cfg.Queue.Mode).Msg("Starting feed collector scheduler")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	if syncFeeds {
		if _, err := os.Stat(cfg.Feeds.File); err == nil {
			if _, err := a.SyncFeeds(ctx, cfg.Feeds.File); err != nil {
				return fmt.Errorf("failed to sync feeds: %w", err)
			}
		} else {
			log.Warn().Str("file", cfg.Feeds.File).Msg("Feeds file not found, using stored feeds")
		}
	}

	healthServer := health.New(cfg.Server.Port, a.Stats, a.Repo, log,
		health.WithStrategies(a.Registry.Strategies()),
		health.WithHostCounter(a.Limiter),
	)
	go func() {
		if err := healthServer.Start(); err != nil {
			log.Error().Err(err).Msg("Health server failed")
		}
	}()

	dispatcher, drain := a.Dispatcher(ctx)
	sched := a.Scheduler(dispatcher)

	workerDone := make(chan struct{})
	if withWorker && cfg.Queue.Mode == config.QueueKafka {
		consumer := a.Consumer()
		go func() {
			defer close(workerDone)
			defer consumer.Close()
			if err := consumer.Run(ctx); err != nil {
				log.Error().Err(err).Msg("Batch consumer stopped")
			}
		}()
	} else {
		close(workerDone)
	}

	c := cron.New(cron.WithLogger(cronLogger{log}), cron.WithChain(cron.SkipIfStillRunning(cronLogger{log})))

	_, err = c.AddFunc(cfg.Scheduler.DispatchCron, func() {
		summary, err := sched.DispatchDueFeeds(ctx, cfg.Scheduler.BatchSize)
		if err != nil {
			log.Error().Err(err).Msg("Scheduled dispatch failed")
			return
		}
		log.Info().
			Int("due_feeds", summary.DueFeeds).
			Int("batches", summary.Batches).
			Msg("Scheduled dispatch completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule dispatch job: %w", err)
	}
	log.Info().Str("cron", cfg.Scheduler.DispatchCron).Msg("Dispatch job scheduled")

	c.Start()
	log.Info().Msg("Scheduler started")

	<-ctx.Done()

	log.Info().Msg("Shutting down scheduler")
	<-c.Stop().Done()

	if err := drain(); err != nil {
		log.Error().Err(err).Msg("Failed to drain dispatcher")
	}
	<-workerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Health server shutdown")
	}

	return nil
}

// cronLogger adapts our logger for cron
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
