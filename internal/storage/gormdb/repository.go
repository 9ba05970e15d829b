package gormdb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/storage"
)

// batchSize bounds statement size; sqlite limits bound parameters
const batchSize = 200

// Repository implements storage.Repository on top of gorm
type Repository struct {
	db *gorm.DB
}

// New opens a sqlite or postgres database
func New(driver, dsn string) (*Repository, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		if !strings.Contains(dsn, ":memory:") && !strings.HasPrefix(dsn, "file:") {
			dir := filepath.Dir(dsn)
			if dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return nil, fmt.Errorf("failed to create data directory: %w", err)
				}
			}
		}
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if dialector.Name() == "sqlite" {
		// one writer at a time; also keeps :memory: databases on a single connection
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.Feed{},
		&models.Article{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Feed operations

func (r *Repository) ListDueFeeds(ctx context.Context, now time.Time) ([]*models.Feed, error) {
	var feeds []*models.Feed
	if err := r.db.WithContext(ctx).
		Where("next_fetch IS NULL OR next_fetch <= ?", now.UTC()).
		Order("id ASC").
		Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

func (r *Repository) GetFeedsByIDs(ctx context.Context, ids []uint) ([]*models.Feed, error) {
	var feeds []*models.Feed
	if len(ids) == 0 {
		return feeds, nil
	}
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

func (r *Repository) GetFeedByURL(ctx context.Context, url string) (*models.Feed, error) {
	var feed models.Feed
	err := r.db.WithContext(ctx).Where("url = ?", url).First(&feed).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &feed, nil
}

func (r *Repository) ListFeeds(ctx context.Context) ([]*models.Feed, error) {
	var feeds []*models.Feed
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&feeds).Error; err != nil {
		return nil, err
	}
	return feeds, nil
}

func (r *Repository) UpsertFeed(ctx context.Context, feed *models.Feed) error {
	feed.Normalize()
	if err := feed.Validate(); err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.Feed
		err := tx.Where("url = ?", feed.URL).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(feed).Error
		}
		if err != nil {
			return err
		}

		feed.ID = existing.ID
		feed.CreatedAt = existing.CreatedAt
		feed.CarrySchedule(&existing)
		return tx.Save(feed).Error
	})
}

func (r *Repository) MarkFeedFetched(ctx context.Context, feedID uint, fetchedAt, nextFetchAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Feed{}).
		Where("id = ?", feedID).
		Updates(map[string]interface{}{
			"last_fetched": fetchedAt.UTC(),
			"next_fetch":   nextFetchAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("feed %d: %w", feedID, storage.ErrNotFound)
	}
	return nil
}

func (r *Repository) ResetLastFetched(ctx context.Context, ids ...uint) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Feed{})
	if len(ids) > 0 {
		query = query.Where("id IN ?", ids)
	} else {
		query = query.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	res := query.Updates(map[string]interface{}{
		"last_fetched": nil,
		"next_fetch":   nil,
	})
	return res.RowsAffected, res.Error
}

// Article operations

func (r *Repository) FindArticlesByURL(ctx context.Context, urls []string) (map[string]*models.Article, error) {
	found := make(map[string]*models.Article, len(urls))
	for start := 0; start < len(urls); start += batchSize {
		end := min(start+batchSize, len(urls))

		var chunk []*models.Article
		if err := r.db.WithContext(ctx).Where("url IN ?", urls[start:end]).Find(&chunk).Error; err != nil {
			return nil, err
		}
		for _, a := range chunk {
			found[a.URL] = a
		}
	}
	return found, nil
}

func (r *Repository) BulkInsertArticles(ctx context.Context, records []*models.Article) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoNothing: true,
		}).
		CreateInBatches(records, batchSize)
	return res.RowsAffected, res.Error
}

func (r *Repository) BulkUpdateArticles(ctx context.Context, records []*models.Article, changedFields []string) (int64, error) {
	if len(records) == 0 || len(changedFields) == 0 {
		return 0, nil
	}

	cols, err := updateColumns(changedFields)
	if err != nil {
		return 0, err
	}

	// Rows are matched by url; the primary key is left out of the insert
	// half of the upsert so only the url constraint can conflict.
	now := time.Now().UTC()
	rows := make([]*models.Article, 0, len(records))
	for _, rec := range records {
		row := *rec
		row.ID = 0
		row.UpdatedAt = now
		rows = append(rows, &row)
	}

	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "url"}},
			DoUpdates: clause.AssignmentColumns(cols),
		}).
		CreateInBatches(rows, batchSize)
	if res.Error != nil {
		return 0, res.Error
	}
	return int64(len(rows)), nil
}

func (r *Repository) ListArticles(ctx context.Context, filter storage.ArticleFilter) ([]*models.Article, error) {
	var articles []*models.Article
	query := r.db.WithContext(ctx).Model(&models.Article{})

	if filter.FeedID != nil {
		query = query.Where("feed_id = ?", *filter.FeedID)
	}
	if filter.Since != nil {
		query = query.Where("published_at >= ?", filter.Since.UTC())
	}

	// Ordering
	orderCol := "published_at"
	switch filter.OrderBy {
	case "created_at", "updated_at", "id", "title":
		orderCol = filter.OrderBy
	}
	if filter.OrderDesc {
		query = query.Order(orderCol + " DESC")
	} else {
		query = query.Order(orderCol + " ASC")
	}
	query = query.Order("id ASC")

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func (r *Repository) CountArticles(ctx context.Context, feedID *uint) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.Article{})
	if feedID != nil {
		query = query.Where("feed_id = ?", *feedID)
	}
	err := query.Count(&count).Error
	return count, err
}

// updateColumns validates changed fields against the mutable columns and
// appends updated_at
func updateColumns(changed []string) ([]string, error) {
	allowed := make(map[string]bool, len(models.ArticleColumns))
	for _, c := range models.ArticleColumns {
		allowed[c] = true
	}
	cols := make([]string, 0, len(changed)+1)
	seen := make(map[string]bool, len(changed))
	for _, c := range changed {
		if !allowed[c] {
			return nil, fmt.Errorf("column %q cannot be updated", c)
		}
		if !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return append(cols, models.ColUpdatedAt), nil
}

var _ storage.Repository = (*Repository)(nil)
