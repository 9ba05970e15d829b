package source

import (
	"time"

	"github.com/feed-collector/internal/models"
)

// Filters restrict which extracted entries are returned
type Filters struct {
	StartDate    *time.Time
	EndDate      *time.Time
	NotOlderThan *time.Time // usually the feed's last fetch
	MaxEntries   int        // applied before per-entry filtering
}

// IncrementalFilters returns the filters of a scheduled run for feed
func IncrementalFilters(feed *models.Feed) Filters {
	return Filters{NotOlderThan: feed.LastFetched}
}

// Keep reports whether an entry published at published passes the filters.
// Undated entries are always kept.
func (f Filters) Keep(published *time.Time) bool {
	if published == nil {
		return true
	}
	if f.StartDate != nil && published.Before(*f.StartDate) {
		return false
	}
	if f.EndDate != nil && published.After(*f.EndDate) {
		return false
	}
	if f.StartDate == nil && f.NotOlderThan != nil && !published.After(*f.NotOlderThan) {
		return false
	}
	return true
}

// Limit truncates items to the configured maximum
func Limit[T any](items []T, max int) []T {
	if max > 0 && len(items) > max {
		return items[:max]
	}
	return items
}
