package html

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/source"
)

const listingPage = `<html><body>
<div class="post">
  <a class="link" href="/news/1">Read</a>
  <meta itemprop="headline" content="Machine headline">
  <h2>Visible headline</h2>
  <span class="author">  Jane   Roe </span>
  <time datetime="2024-01-12T09:00:00+0000">12 Jan</time>
  <p class="body">First paragraph.</p>
  <p class="body">Second paragraph.</p>
  <ul><li class="tag">go</li><li class="tag">web</li></ul>
</div>
<div class="post">
  <h2>No link</h2>
</div>
<div class="post">
  <a class="link" href="https://other.example.com/2">Read</a>
  <h2>Second</h2>
  <div class="teaser">A teaser</div>
  <time datetime="2024-01-08T09:00:00+0000">8 Jan</time>
</div>
</body></html>`

func listingFeed() *models.Feed {
	f := &models.Feed{
		ID:        3,
		Name:      "listing",
		URL:       "https://example.com/blog/",
		Strategy:  models.StrategyHTML,
		Container: "div.post",
		FieldMapping: models.FieldMapping{
			"url_field":         "a.link",
			"title_field":       "meta[itemprop=headline]",
			"author_field":      ".author",
			"published_field":   "time",
			"content_field":     "p.body",
			"description_field": ".teaser",
			"categories_field":  "li.tag",
		},
	}
	f.Normalize()
	return f
}

func TestExtractHTML(t *testing.T) {
	entries := New(source.Deps{}).Extract(context.Background(), listingFeed(), []byte(listingPage), source.Filters{})

	require.Len(t, entries, 2)

	e := entries[0]
	assert.Equal(t, "https://example.com/news/1", e.URL)
	assert.Equal(t, "Machine headline", e.Title, "content attribute wins over text")
	assert.Equal(t, []string{"Jane Roe"}, e.Authors)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", e.Content)
	assert.Equal(t, "First paragraph.\nSecond paragraph.", e.Summary)
	assert.Equal(t, []string{"go", "web"}, e.Categories)
	assert.Equal(t, []string{"go", "web"}, e.MetaKeywords, "keywords fall back to categories")
	require.NotNil(t, e.Published)
	assert.Equal(t, time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC), *e.Published)

	second := entries[1]
	assert.Equal(t, "https://other.example.com/2", second.URL)
	assert.Equal(t, "A teaser", second.Summary)
	assert.Equal(t, "A teaser", second.Content, "content falls back to description")
	assert.Empty(t, second.Categories)
}

func TestExtractHTMLDateRange(t *testing.T) {
	start := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	entries := New(source.Deps{}).Extract(context.Background(), listingFeed(), []byte(listingPage), source.Filters{StartDate: &start})

	require.Len(t, entries, 1)
	assert.Equal(t, "https://example.com/news/1", entries[0].URL)
}

func TestExtractHTMLNoBlocks(t *testing.T) {
	feed := listingFeed()
	feed.Container = "article.missing"

	assert.Empty(t, New(source.Deps{}).Extract(context.Background(), feed, []byte(listingPage), source.Filters{}))
}
