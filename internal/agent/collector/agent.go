package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/reconcile"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/internal/source/html"
	"github.com/feed-collector/internal/source/jsonfeed"
	"github.com/feed-collector/internal/source/rss"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

// Agent runs the fetch, extract, reconcile and bookkeeping pipeline for
// one feed at a time.
type Agent struct {
	registry   *source.Registry
	fetcher    source.Fetcher
	repository storage.Repository
	reconciler *reconcile.Reconciler
	now        func() time.Time
	log        *logger.Logger
}

// Option customises an Agent
type Option func(*Agent)

// WithClock replaces the wall clock used for bookkeeping
func WithClock(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// NewAgent creates a new collector agent
func NewAgent(
	registry *source.Registry,
	fetcher source.Fetcher,
	repository storage.Repository,
	log *logger.Logger,
	opts ...Option,
) *Agent {
	a := &Agent{
		registry:   registry,
		fetcher:    fetcher,
		repository: repository,
		reconciler: reconcile.New(repository, log),
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.WithComponent("collector"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// DefaultRegistry registers the generic, json and html extractors
func DefaultRegistry(deps source.Deps) *source.Registry {
	return source.NewRegistry(
		rss.New(deps),
		jsonfeed.New(deps),
		html.New(deps),
	)
}

// RunOptions tunes a single pipeline run
type RunOptions struct {
	// Filters overrides the incremental filters derived from the feed
	Filters *source.Filters
	// SkipBookkeeping leaves last/next fetch untouched
	SkipBookkeeping bool
}

// RunFeed executes the pipeline for feed. A failed download yields an empty
// result and still advances the schedule; storage failures and cancellation
// are returned without touching it.
func (a *Agent) RunFeed(ctx context.Context, feed *models.Feed, opts RunOptions) (*models.FeedResult, error) {
	start := a.now()
	result := &models.FeedResult{FeedID: feed.ID, FeedName: feed.Name}
	log := a.log.WithFeed(feed.ID, feed.Name)

	extractor, err := a.registry.Resolve(feed.Strategy)
	if err != nil {
		return result, err
	}

	filters := source.IncrementalFilters(feed)
	if opts.Filters != nil {
		filters = *opts.Filters
	}

	var entries []models.Entry
	payload, err := a.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, fmt.Errorf("fetch feed %d: %w", feed.ID, ctxErr)
		}
		log.Warn().Err(err).Str("url", feed.URL).Msg("Failed to fetch feed")
	} else {
		entries = extractor.Extract(ctx, feed, payload, filters)
	}

	res, err := a.reconciler.Reconcile(ctx, feed, entries)
	result.Added, result.Updated, result.TotalSeen = res.Created, res.Updated, res.TotalSeen
	if err != nil {
		return result, fmt.Errorf("reconcile feed %d: %w", feed.ID, err)
	}

	if !opts.SkipBookkeeping {
		last, next := feed.Schedule(start)
		if err := a.repository.MarkFeedFetched(ctx, feed.ID, last, next); err != nil {
			return result, fmt.Errorf("update bookkeeping for feed %d: %w", feed.ID, err)
		}
		feed.LastFetched, feed.NextFetch = &last, &next
	}

	result.Duration = a.now().Sub(start)

	log.Info().
		Int("added", result.Added).
		Int("updated", result.Updated).
		Int("total_seen", result.TotalSeen).
		Dur("duration", result.Duration).
		Msg("Feed processed")

	return result, nil
}

// Preview downloads and extracts feed without touching storage
func (a *Agent) Preview(ctx context.Context, feed *models.Feed, filters source.Filters) ([]models.Entry, error) {
	extractor, err := a.registry.Resolve(feed.Strategy)
	if err != nil {
		return nil, err
	}

	payload, err := a.fetcher.Fetch(ctx, feed.URL)
	if err != nil {
		return nil, err
	}

	entries := extractor.Extract(ctx, feed, payload, filters)
	if entries == nil {
		entries = []models.Entry{}
	}
	return entries, nil
}
