package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"

	"github.com/feed-collector/internal/agent/collector"
	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

// DefaultMaxWorkers caps concurrent feed pipelines within one batch
const DefaultMaxWorkers = 5

// FeedRunner executes the pipeline for a single feed
type FeedRunner interface {
	RunFeed(ctx context.Context, feed *models.Feed, opts collector.RunOptions) (*models.FeedResult, error)
}

// Batcher processes one batch of feed IDs on a bounded worker pool
type Batcher struct {
	repo       storage.FeedRepository
	runner     FeedRunner
	maxWorkers int
	retry      RetryPolicy
	stats      *Stats
	now        func() time.Time
	log        *logger.Logger

	inFlight sync.Map // feed ID -> struct{}
}

// BatcherConfig holds the batcher tunables
type BatcherConfig struct {
	MaxWorkers int
	Retry      RetryPolicy
	Stats      *Stats
	Now        func() time.Time
}

// NewBatcher creates a batcher
func NewBatcher(repo storage.FeedRepository, runner FeedRunner, cfg BatcherConfig, log *logger.Logger) *Batcher {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = DefaultMaxWorkers
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = func(err error) bool {
			return !errors.Is(err, source.ErrUnknownStrategy)
		}
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStats()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Batcher{
		repo:       repo,
		runner:     runner,
		maxWorkers: cfg.MaxWorkers,
		retry:      cfg.Retry,
		stats:      cfg.Stats,
		now:        cfg.Now,
		log:        log.WithComponent("batcher"),
	}
}

// ProcessBatch runs every due feed in feedIDs and returns one result per
// requested ID, in request order. A failing or panicking feed never affects
// its siblings.
func (b *Batcher) ProcessBatch(ctx context.Context, feedIDs []uint) []*models.FeedResult {
	results := make([]*models.FeedResult, len(feedIDs))
	if len(feedIDs) == 0 {
		return results
	}

	feeds, err := b.repo.GetFeedsByIDs(ctx, feedIDs)
	if err != nil {
		b.log.Error().Err(err).Int("feeds", len(feedIDs)).Msg("Failed to load batch feeds")
		for i, id := range feedIDs {
			results[i] = &models.FeedResult{FeedID: id, Error: fmt.Sprintf("load feed: %v", err)}
			b.stats.recordResult(results[i])
		}
		return results
	}

	byID := make(map[uint]*models.Feed, len(feeds))
	for _, f := range feeds {
		byID[f.ID] = f
	}

	now := b.now()
	var runnable []int
	for i, id := range feedIDs {
		feed, ok := byID[id]
		switch {
		case !ok:
			results[i] = &models.FeedResult{FeedID: id, Error: "feed not found"}
		case !feed.IsDue(now):
			results[i] = &models.FeedResult{FeedID: id, FeedName: feed.Name, Skipped: true, Reason: "not due"}
		default:
			if _, busy := b.inFlight.LoadOrStore(id, struct{}{}); busy {
				results[i] = &models.FeedResult{FeedID: id, FeedName: feed.Name, Skipped: true, Reason: "already running"}
				break
			}
			runnable = append(runnable, i)
		}
	}

	if len(runnable) > 0 {
		p := pool.New().WithMaxGoroutines(min(b.maxWorkers, len(runnable)))
		for _, i := range runnable {
			p.Go(func() {
				feed := byID[feedIDs[i]]
				defer b.inFlight.Delete(feed.ID)
				results[i] = b.runFeed(ctx, feed)
			})
		}
		p.Wait()
	}

	var failed, skipped int
	for _, r := range results {
		b.stats.recordResult(r)
		if r.Skipped {
			skipped++
		} else if r.Failed() {
			failed++
		}
	}

	b.log.Info().
		Int("feeds", len(feedIDs)).
		Int("ran", len(runnable)).
		Int("failed", failed).
		Int("skipped", skipped).
		Msg("Batch processed")

	return results
}

func (b *Batcher) runFeed(ctx context.Context, feed *models.Feed) *models.FeedResult {
	start := time.Now()
	log := b.log.WithFeed(feed.ID, feed.Name)

	var result *models.FeedResult
	attempts, err := b.retry.Do(ctx, func(attempt int) error {
		var runErr error
		var pc panics.Catcher
		pc.Try(func() {
			result, runErr = b.runner.RunFeed(ctx, feed, collector.RunOptions{})
		})
		if rec := pc.Recovered(); rec != nil {
			runErr = rec.AsError()
		}
		if runErr != nil {
			log.Warn().Err(runErr).Int("attempt", attempt).Msg("Feed pipeline failed")
		}
		return runErr
	})

	if result == nil {
		result = &models.FeedResult{FeedID: feed.ID, FeedName: feed.Name}
	}
	result.Attempts = attempts
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		log.Error().Err(err).Int("attempts", attempts).Msg("Feed pipeline gave up")
	}
	return result
}
