package scheduler

import (
	"sync/atomic"
	"time"

	"github.com/feed-collector/internal/models"
)

// Stats counts dispatch and pipeline outcomes for the health endpoint
type Stats struct {
	dispatches   atomic.Int64
	batches      atomic.Int64
	feedsRun     atomic.Int64
	feedsFailed  atomic.Int64
	feedsSkipped atomic.Int64
	added        atomic.Int64
	updated      atomic.Int64
	lastDispatch atomic.Int64 // unix nanos
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	Dispatches      int64      `json:"dispatches"`
	Batches         int64      `json:"batches"`
	FeedsRun        int64      `json:"feeds_run"`
	FeedsFailed     int64      `json:"feeds_failed"`
	FeedsSkipped    int64      `json:"feeds_skipped"`
	ArticlesAdded   int64      `json:"articles_added"`
	ArticlesUpdated int64      `json:"articles_updated"`
	LastDispatch    *time.Time `json:"last_dispatch,omitempty"`
}

// NewStats creates zeroed counters
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) recordDispatch(now time.Time, batches int) {
	s.dispatches.Add(1)
	s.batches.Add(int64(batches))
	s.lastDispatch.Store(now.UnixNano())
}

func (s *Stats) recordResult(r *models.FeedResult) {
	switch {
	case r.Skipped:
		s.feedsSkipped.Add(1)
	case r.Failed():
		s.feedsFailed.Add(1)
	default:
		s.feedsRun.Add(1)
	}
	s.added.Add(int64(r.Added))
	s.updated.Add(int64(r.Updated))
}

// Snapshot returns the current counters
func (s *Stats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		Dispatches:      s.dispatches.Load(),
		Batches:         s.batches.Load(),
		FeedsRun:        s.feedsRun.Load(),
		FeedsFailed:     s.feedsFailed.Load(),
		FeedsSkipped:    s.feedsSkipped.Load(),
		ArticlesAdded:   s.added.Load(),
		ArticlesUpdated: s.updated.Load(),
	}
	if ns := s.lastDispatch.Load(); ns != 0 {
		t := time.Unix(0, ns).UTC()
		snap.LastDispatch = &t
	}
	return snap
}
