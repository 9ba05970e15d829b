package reconcile

import (
	"context"
	"fmt"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/storage"
	"github.com/feed-collector/pkg/logger"
)

// Result counts the outcome of one reconciliation
type Result struct {
	Created   int
	Updated   int
	TotalSeen int
}

// Reconciler decides create, update or no-op for extracted entries by
// comparing them with stored articles keyed by URL.
type Reconciler struct {
	repo storage.ArticleRepository
	log  *logger.Logger
}

// New creates a reconciler
func New(repo storage.ArticleRepository, log *logger.Logger) *Reconciler {
	return &Reconciler{
		repo: repo,
		log:  log.WithComponent("reconcile"),
	}
}

// Reconcile persists entries for feed with one batch read, one bulk insert
// and one bulk update. Storage errors are returned to the caller.
func (r *Reconciler) Reconcile(ctx context.Context, feed *models.Feed, entries []models.Entry) (Result, error) {
	res := Result{TotalSeen: len(entries)}
	if len(entries) == 0 {
		return res, nil
	}

	urls := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.URL != "" && !seen[e.URL] {
			seen[e.URL] = true
			urls = append(urls, e.URL)
		}
	}

	existing, err := r.repo.FindArticlesByURL(ctx, urls)
	if err != nil {
		return res, fmt.Errorf("failed to load existing articles: %w", err)
	}

	var fresh []*models.Article
	var changed []*models.Article
	columns := make(map[string]bool)
	marked := make(map[string]bool)

	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		stored, ok := existing[e.URL]
		if !ok {
			// same-URL duplicates in one batch are left to the unique index
			fresh = append(fresh, e.ToArticle(feed.ID))
			continue
		}
		cols := Apply(stored, e)
		if len(cols) == 0 {
			continue
		}
		for _, c := range cols {
			columns[c] = true
		}
		if !marked[e.URL] {
			marked[e.URL] = true
			changed = append(changed, stored)
		}
	}

	if len(fresh) > 0 {
		created, err := r.repo.BulkInsertArticles(ctx, fresh)
		if err != nil {
			return res, fmt.Errorf("failed to insert articles: %w", err)
		}
		res.Created = int(created)
	}

	if len(changed) > 0 {
		var cols []string
		for _, c := range models.ArticleColumns {
			if columns[c] {
				cols = append(cols, c)
			}
		}
		if _, err := r.repo.BulkUpdateArticles(ctx, changed, cols); err != nil {
			return res, fmt.Errorf("failed to update articles: %w", err)
		}
		res.Updated = len(changed)
	}

	r.log.Debug().
		Uint("feed_id", feed.ID).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("total_seen", res.TotalSeen).
		Msg("Reconciled entries")

	return res, nil
}
