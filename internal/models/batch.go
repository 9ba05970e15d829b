package models

import (
	"time"

	"github.com/google/uuid"
)

// BatchJob is one bounded group of due feeds dispatched together
type BatchJob struct {
	ID        string    `json:"id"`
	FeedIDs   []uint    `json:"feed_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// NewBatchJob wraps feed IDs into a job with a fresh identifier
func NewBatchJob(feedIDs []uint, now time.Time) BatchJob {
	return BatchJob{
		ID:        uuid.NewString(),
		FeedIDs:   feedIDs,
		CreatedAt: now.UTC(),
	}
}

// FeedResult summarises one feed pipeline run. It is produced even when the
// pipeline failed so callers observe partial success.
type FeedResult struct {
	FeedID    uint          `json:"feed_id"`
	FeedName  string        `json:"feed_name"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	TotalSeen int           `json:"total_seen"`
	Skipped   bool          `json:"skipped,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	Error     string        `json:"error,omitempty"`
	Attempts  int           `json:"attempts"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the run ended with an error
func (r *FeedResult) Failed() bool {
	return r.Error != ""
}
