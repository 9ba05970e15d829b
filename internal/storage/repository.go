package storage

import (
	"context"
	"errors"
	"time"

	"github.com/feed-collector/internal/models"
)

// ErrNotFound is returned when a single record lookup finds nothing
var ErrNotFound = errors.New("record not found")

// FeedRepository persists feed configuration and fetch bookkeeping
type FeedRepository interface {
	// ListDueFeeds returns feeds whose next fetch is unset or not after now
	ListDueFeeds(ctx context.Context, now time.Time) ([]*models.Feed, error)
	GetFeedsByIDs(ctx context.Context, ids []uint) ([]*models.Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*models.Feed, error)
	ListFeeds(ctx context.Context) ([]*models.Feed, error)

	// UpsertFeed creates the feed or updates its configuration by URL.
	// Fetch bookkeeping of an existing feed is left untouched.
	UpsertFeed(ctx context.Context, feed *models.Feed) error

	// MarkFeedFetched records a completed fetch attempt
	MarkFeedFetched(ctx context.Context, feedID uint, fetchedAt, nextFetchAt time.Time) error

	// ResetLastFetched clears the bookkeeping so the feed is due and
	// re-reads its full history. No ids means every feed.
	ResetLastFetched(ctx context.Context, ids ...uint) (int64, error)
}

// ArticleRepository persists article records keyed by URL
type ArticleRepository interface {
	// FindArticlesByURL loads the existing records for urls in one read
	FindArticlesByURL(ctx context.Context, urls []string) (map[string]*models.Article, error)

	// BulkInsertArticles inserts records, ignoring URL conflicts, and
	// returns the number of rows actually inserted
	BulkInsertArticles(ctx context.Context, records []*models.Article) (int64, error)

	// BulkUpdateArticles writes only changedFields (plus updated_at) of
	// records, matched by URL
	BulkUpdateArticles(ctx context.Context, records []*models.Article, changedFields []string) (int64, error)

	ListArticles(ctx context.Context, filter ArticleFilter) ([]*models.Article, error)
	CountArticles(ctx context.Context, feedID *uint) (int64, error)
}

// Repository defines the interface for data persistence
type Repository interface {
	FeedRepository
	ArticleRepository

	// Maintenance
	Close() error
	Migrate() error
}

// ArticleFilter defines filtering options for articles
type ArticleFilter struct {
	FeedID    *uint
	Since     *time.Time // published at or after
	Limit     int
	Offset    int
	OrderBy   string // "published_at", "created_at"
	OrderDesc bool
}

// DefaultArticleFilter returns a filter with sensible defaults
func DefaultArticleFilter() ArticleFilter {
	return ArticleFilter{
		Limit:     50,
		OrderBy:   "published_at",
		OrderDesc: true,
	}
}
