package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/storage"
)

// Repository is an in-process storage.Repository. It backs dry runs and
// tests; nothing survives the process.
type Repository struct {
	mu       sync.RWMutex
	feeds    map[uint]*models.Feed
	articles map[string]*models.Article
	nextFeed uint
	nextArt  uint
	now      func() time.Time
	writes   int
}

// New creates an empty repository
func New() *Repository {
	return &Repository{
		feeds:    make(map[uint]*models.Feed),
		articles: make(map[string]*models.Article),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Writes returns the number of bulk write calls made so far
func (r *Repository) Writes() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.writes
}

func (r *Repository) Migrate() error { return nil }
func (r *Repository) Close() error   { return nil }

func (r *Repository) ListDueFeeds(_ context.Context, now time.Time) ([]*models.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Feed
	for _, f := range r.sortedFeeds() {
		if f.IsDue(now) {
			out = append(out, cloneFeed(f))
		}
	}
	return out, nil
}

func (r *Repository) GetFeedsByIDs(_ context.Context, ids []uint) ([]*models.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Feed
	for _, id := range ids {
		if f, ok := r.feeds[id]; ok {
			out = append(out, cloneFeed(f))
		}
	}
	return out, nil
}

func (r *Repository) GetFeedByURL(_ context.Context, url string) (*models.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.feeds {
		if f.URL == url {
			return cloneFeed(f), nil
		}
	}
	return nil, storage.ErrNotFound
}

func (r *Repository) ListFeeds(_ context.Context) ([]*models.Feed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Feed
	for _, f := range r.sortedFeeds() {
		out = append(out, cloneFeed(f))
	}
	return out, nil
}

func (r *Repository) UpsertFeed(_ context.Context, feed *models.Feed) error {
	feed.Normalize()
	if err := feed.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, existing := range r.feeds {
		if existing.URL == feed.URL {
			feed.ID = existing.ID
			feed.CreatedAt = existing.CreatedAt
			feed.CarrySchedule(existing)
			feed.UpdatedAt = now
			r.feeds[feed.ID] = cloneFeed(feed)
			return nil
		}
	}
	r.nextFeed++
	feed.ID = r.nextFeed
	feed.CreatedAt, feed.UpdatedAt = now, now
	r.feeds[feed.ID] = cloneFeed(feed)
	return nil
}

func (r *Repository) MarkFeedFetched(_ context.Context, feedID uint, fetchedAt, nextFetchAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.feeds[feedID]
	if !ok {
		return fmt.Errorf("feed %d: %w", feedID, storage.ErrNotFound)
	}
	last, next := fetchedAt.UTC(), nextFetchAt.UTC()
	f.LastFetched, f.NextFetch = &last, &next
	return nil
}

func (r *Repository) ResetLastFetched(_ context.Context, ids ...uint) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, f := range r.feeds {
		if len(ids) > 0 && !contains(ids, id) {
			continue
		}
		f.LastFetched, f.NextFetch = nil, nil
		n++
	}
	return n, nil
}

func (r *Repository) FindArticlesByURL(_ context.Context, urls []string) (map[string]*models.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*models.Article, len(urls))
	for _, u := range urls {
		if a, ok := r.articles[u]; ok {
			out[u] = cloneArticle(a)
		}
	}
	return out, nil
}

func (r *Repository) BulkInsertArticles(_ context.Context, records []*models.Article) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	now := r.now()
	var n int64
	for _, rec := range records {
		if _, exists := r.articles[rec.URL]; exists {
			continue
		}
		r.nextArt++
		a := cloneArticle(rec)
		a.ID = r.nextArt
		a.CreatedAt, a.UpdatedAt = now, now
		r.articles[a.URL] = a
		n++
	}
	return n, nil
}

func (r *Repository) BulkUpdateArticles(_ context.Context, records []*models.Article, changedFields []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	now := r.now()
	var n int64
	for _, rec := range records {
		stored, ok := r.articles[rec.URL]
		if !ok {
			continue
		}
		for _, col := range changedFields {
			switch col {
			case models.ColTitle:
				stored.Title = rec.Title
			case models.ColContent:
				stored.Content = rec.Content
			case models.ColAuthors:
				stored.Authors = append(models.StringSlice(nil), rec.Authors...)
			case models.ColCategories:
				stored.Categories = append(models.StringSlice(nil), rec.Categories...)
			case models.ColMetaKeywords:
				stored.MetaKeywords = append(models.StringSlice(nil), rec.MetaKeywords...)
			case models.ColPublishedAt:
				stored.PublishedAt = copyTime(rec.PublishedAt)
			default:
				return n, fmt.Errorf("column %q cannot be updated", col)
			}
		}
		stored.UpdatedAt = now
		n++
	}
	return n, nil
}

func (r *Repository) ListArticles(_ context.Context, filter storage.ArticleFilter) ([]*models.Article, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Article
	for _, a := range r.articles {
		if filter.FeedID != nil && a.FeedID != *filter.FeedID {
			continue
		}
		if filter.Since != nil && (a.PublishedAt == nil || a.PublishedAt.Before(*filter.Since)) {
			continue
		}
		out = append(out, cloneArticle(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OrderDesc {
			return out[i].ID > out[j].ID
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *Repository) CountArticles(_ context.Context, feedID *uint) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, a := range r.articles {
		if feedID == nil || a.FeedID == *feedID {
			n++
		}
	}
	return n, nil
}

func (r *Repository) sortedFeeds() []*models.Feed {
	out := make([]*models.Feed, 0, len(r.feeds))
	for _, f := range r.feeds {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneFeed(f *models.Feed) *models.Feed {
	c := *f
	c.LastFetched = copyTime(f.LastFetched)
	c.NextFetch = copyTime(f.NextFetch)
	if f.FieldMapping != nil {
		c.FieldMapping = make(models.FieldMapping, len(f.FieldMapping))
		for k, v := range f.FieldMapping {
			c.FieldMapping[k] = v
		}
	}
	return &c
}

func cloneArticle(a *models.Article) *models.Article {
	c := *a
	c.Authors = append(models.StringSlice(nil), a.Authors...)
	c.Categories = append(models.StringSlice(nil), a.Categories...)
	c.MetaKeywords = append(models.StringSlice(nil), a.MetaKeywords...)
	c.PublishedAt = copyTime(a.PublishedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func contains(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var _ storage.Repository = (*Repository)(nil)
