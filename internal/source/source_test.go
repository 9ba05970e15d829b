package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/pkg/ratelimit"
)

func day(d int) *time.Time {
	t := time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestFiltersIncrementalCutoff(t *testing.T) {
	f := IncrementalFilters(&models.Feed{LastFetched: day(11)})

	assert.False(t, f.Keep(day(10)))
	assert.False(t, f.Keep(day(11)), "equal to last fetch is excluded")
	assert.True(t, f.Keep(day(12)))
	assert.True(t, f.Keep(nil), "undated entries pass")
}

func TestFiltersExplicitRangeDisablesCutoff(t *testing.T) {
	f := Filters{StartDate: day(5), EndDate: day(10), NotOlderThan: day(20)}

	assert.False(t, f.Keep(day(4)))
	assert.True(t, f.Keep(day(5)))
	assert.True(t, f.Keep(day(8)))
	assert.True(t, f.Keep(day(10)))
	assert.False(t, f.Keep(day(11)))
}

func TestLimit(t *testing.T) {
	assert.Equal(t, []int{1, 2}, Limit([]int{1, 2, 3}, 2))
	assert.Equal(t, []int{1, 2, 3}, Limit([]int{1, 2, 3}, 0))
}

func TestHTTPFetcher(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("payload"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(time.Second, "", ratelimit.NewHostLimiter(0, 1))

	body, err := f.Fetch(context.Background(), srv.URL+"/feed")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, DefaultUserAgent, gotUA)

	_, err = f.Fetch(context.Background(), srv.URL+"/missing")
	assert.True(t, errors.Is(err, ErrHTTPStatus))
}

func TestHTTPFetcherTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(20*time.Millisecond, "test-agent", nil)
	_, err := f.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}

type stubExtractor struct{ strategy models.Strategy }

func (s stubExtractor) Strategy() models.Strategy { return s.strategy }
func (s stubExtractor) Extract(context.Context, *models.Feed, []byte, Filters) []models.Entry {
	return nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubExtractor{models.StrategyJSON}, stubExtractor{models.StrategyGeneric})

	e, err := r.Resolve(models.StrategyJSON)
	require.NoError(t, err)
	assert.Equal(t, models.StrategyJSON, e.Strategy())

	_, err = r.Resolve(models.StrategyHTML)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
	assert.Equal(t, []models.Strategy{models.StrategyGeneric, models.StrategyJSON}, r.Strategies())
}

type stubEnricher struct {
	en  *Enrichment
	err error
}

func (s stubEnricher) Enrich(context.Context, string) (*Enrichment, error) { return s.en, s.err }

func TestDepsEnrich(t *testing.T) {
	feed := &models.Feed{ExtractFullContent: true}

	d := Deps{Enricher: stubEnricher{en: &Enrichment{Text: "a much longer body", Authors: []string{" Ann "}, Keywords: []string{"go"}}}}.WithDefaults()
	e := &models.Entry{URL: "https://x/1", Content: "short", Authors: []string{"Bob"}}
	d.Enrich(context.Background(), feed, e)
	assert.Equal(t, "a much longer body", e.Content)
	assert.Equal(t, []string{"Ann"}, e.Authors)
	assert.Equal(t, []string{"go"}, e.MetaKeywords)

	d = Deps{Enricher: stubEnricher{en: &Enrichment{Text: "tiny"}}}.WithDefaults()
	e = &models.Entry{URL: "https://x/1", Content: "already longer", Authors: []string{"Bob"}}
	d.Enrich(context.Background(), feed, e)
	assert.Equal(t, "already longer", e.Content)
	assert.Equal(t, []string{"Bob"}, e.Authors)

	d = Deps{Enricher: stubEnricher{err: errors.New("boom")}}.WithDefaults()
	e = &models.Entry{URL: "https://x/1", Content: "kept"}
	d.Enrich(context.Background(), feed, e)
	assert.Equal(t, "kept", e.Content)

	feed.ExtractFullContent = false
	d = Deps{Enricher: stubEnricher{en: &Enrichment{Text: "a much longer body"}}}.WithDefaults()
	e = &models.Entry{URL: "https://x/1", Content: "short"}
	d.Enrich(context.Background(), feed, e)
	assert.Equal(t, "short", e.Content)
}
