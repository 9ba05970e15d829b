package queue

import (
	"context"

	"github.com/sourcegraph/conc"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/pkg/logger"
)

// BatchProcessor runs a batch of feeds
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, feedIDs []uint) []*models.FeedResult
}

// LocalDispatcher runs each batch on its own goroutine in this process
type LocalDispatcher struct {
	base      context.Context
	processor BatchProcessor
	wg        conc.WaitGroup
	log       *logger.Logger
}

// NewLocalDispatcher creates a dispatcher whose batches inherit base rather
// than the dispatching caller's context, so they outlive a single tick.
func NewLocalDispatcher(base context.Context, processor BatchProcessor, log *logger.Logger) *LocalDispatcher {
	return &LocalDispatcher{
		base:      base,
		processor: processor,
		log:       log.WithComponent("local-dispatcher"),
	}
}

// Dispatch starts the batch and returns immediately
func (d *LocalDispatcher) Dispatch(_ context.Context, job models.BatchJob) error {
	d.wg.Go(func() {
		log := d.log.WithBatch(job.ID)
		log.Debug().Int("feeds", len(job.FeedIDs)).Msg("Batch started")
		results := d.processor.ProcessBatch(d.base, job.FeedIDs)
		log.Debug().Int("results", len(results)).Msg("Batch finished")
	})
	return nil
}

// Wait blocks until every dispatched batch has finished
func (d *LocalDispatcher) Wait() {
	d.wg.Wait()
}
