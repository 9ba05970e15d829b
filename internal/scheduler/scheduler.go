package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

// DefaultBatchSize is the number of feeds per dispatched batch
const DefaultBatchSize = 10

// Dispatcher hands a batch job to whatever will process it. Dispatch must
// not wait for the batch to finish.
type Dispatcher interface {
	Dispatch(ctx context.Context, job models.BatchJob) error
}

// Scheduler finds due feeds and dispatches them in batches
type Scheduler struct {
	repo       storage.FeedRepository
	dispatcher Dispatcher
	stats      *Stats
	now        func() time.Time
	log        *logger.Logger
}

// DispatchSummary describes one dispatch cycle
type DispatchSummary struct {
	DueFeeds int
	Batches  int
	Failed   int
	JobIDs   []string
	Duration time.Duration
}

// New creates a scheduler. stats may be nil.
func New(repo storage.FeedRepository, dispatcher Dispatcher, stats *Stats, log *logger.Logger) *Scheduler {
	if stats == nil {
		stats = NewStats()
	}
	return &Scheduler{
		repo:       repo,
		dispatcher: dispatcher,
		stats:      stats,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log.WithComponent("scheduler"),
	}
}

// DispatchDueFeeds partitions all due feeds into batches of batchSize and
// dispatches each one. A failed dispatch is logged and does not stop the
// remaining batches.
func (s *Scheduler) DispatchDueFeeds(ctx context.Context, batchSize int) (*DispatchSummary, error) {
	start := s.now()
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}

	feeds, err := s.repo.ListDueFeeds(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to list due feeds: %w", err)
	}

	summary := &DispatchSummary{DueFeeds: len(feeds)}
	ids := make([]uint, len(feeds))
	for i, f := range feeds {
		ids[i] = f.ID
	}

	for _, chunk := range Partition(ids, batchSize) {
		job := models.NewBatchJob(chunk, start)
		if err := s.dispatcher.Dispatch(ctx, job); err != nil {
			s.log.Error().Err(err).Str("batch_id", job.ID).Int("feeds", len(chunk)).Msg("Failed to dispatch batch")
			summary.Failed++
			continue
		}
		summary.Batches++
		summary.JobIDs = append(summary.JobIDs, job.ID)
	}

	s.stats.recordDispatch(start, summary.Batches)
	summary.Duration = s.now().Sub(start)

	s.log.Info().
		Int("due_feeds", summary.DueFeeds).
		Int("batches", summary.Batches).
		Int("failed", summary.Failed).
		Msg("Dispatched due feeds")

	return summary, nil
}

// Partition splits ids into consecutive chunks of at most size elements
func Partition(ids []uint, size int) [][]uint {
	if size < 1 {
		size = 1
	}
	var out [][]uint
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
