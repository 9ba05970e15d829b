package source

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/pkg/logger"
)

// ErrUnknownStrategy is returned when no extractor handles a strategy
var ErrUnknownStrategy = errors.New("unknown extraction strategy")

// Extractor turns a fetched payload into normalized entries. Malformed
// payloads are logged and yield no entries; Extract never fails the caller.
type Extractor interface {
	// Strategy returns the strategy this extractor serves
	Strategy() models.Strategy

	// Extract parses payload according to the feed's mapping and filters
	Extract(ctx context.Context, feed *models.Feed, payload []byte, filters Filters) []models.Entry
}

// Fetcher retrieves a remote document
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Enrichment is the fuller article body and metadata found at an entry URL
type Enrichment struct {
	Text     string
	Authors  []string
	Keywords []string
}

// Enricher downloads an article page and extracts its main content
type Enricher interface {
	Enrich(ctx context.Context, articleURL string) (*Enrichment, error)
}

// Deps bundles the collaborators every extractor needs
type Deps struct {
	Dates    *normalize.DateNormalizer
	Content  *normalize.ContentNormalizer
	Enricher Enricher
	Log      *logger.Logger
}

// WithDefaults fills nil collaborators so extractors can be built in tests
func (d Deps) WithDefaults() Deps {
	if d.Dates == nil {
		d.Dates = normalize.NewDateNormalizer(time.UTC)
	}
	if d.Content == nil {
		d.Content = normalize.NewContentNormalizer()
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}

// Enrich applies full-content extraction to e when the feed asks for it.
// Content is replaced only by a strictly longer text, authors only by a
// non-empty list. Failures leave the entry untouched.
func (d Deps) Enrich(ctx context.Context, feed *models.Feed, e *models.Entry) {
	if !feed.ExtractFullContent || d.Enricher == nil || e.URL == "" {
		return
	}
	en, err := d.Enricher.Enrich(ctx, e.URL)
	if err != nil {
		d.Log.Warn().Err(err).Str("url", e.URL).Msg("Full content extraction failed")
		return
	}
	if len(en.Text) > len(e.Content) {
		e.Content = en.Text
	}
	if authors := normalize.List(en.Authors...); len(authors) > 0 {
		e.Authors = authors
	}
	if kw := normalize.List(en.Keywords...); len(kw) > 0 {
		e.MetaKeywords = kw
	}
}

// Registry resolves extractors by strategy
type Registry struct {
	extractors map[models.Strategy]Extractor
}

// NewRegistry creates a registry holding the given extractors
func NewRegistry(extractors ...Extractor) *Registry {
	r := &Registry{extractors: make(map[models.Strategy]Extractor)}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the extractor for its strategy
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Strategy()] = e
}

// Resolve returns the extractor for strategy
func (r *Registry) Resolve(strategy models.Strategy) (Extractor, error) {
	e, ok := r.extractors[strategy]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}
	return e, nil
}

// Strategies returns the registered strategies in sorted order
func (r *Registry) Strategies() []models.Strategy {
	out := make([]models.Strategy, 0, len(r.extractors))
	for s := range r.extractors {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
