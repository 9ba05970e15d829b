package rss

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/source"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example</title>
  <link>https://example.com</link>
  <item>
    <title>First &amp; old</title>
    <link>https://example.com/u1</link>
    <description>Old news</description>
    <pubDate>Wed, 10 Jan 2024 10:00:00 +0000</pubDate>
    <category>tech</category>
  </item>
  <item>
    <title>  Second
      post </title>
    <link>https://example.com/u2</link>
    <description>Fresh news</description>
    <content:encoded><![CDATA[<p>Full <b>body</b></p>]]></content:encoded>
    <dc:creator>Jane Roe</dc:creator>
    <pubDate>Fri, 12 Jan 2024 10:00:00 +0000</pubDate>
    <category>go</category>
    <category>release</category>
    <category>go</category>
  </item>
  <item>
    <title>No link</title>
    <description>dropped</description>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom example</title>
  <entry>
    <title>Atom entry</title>
    <link rel="self" href="https://example.org/self/1"/>
    <link rel="alternate" href="https://example.org/posts/1"/>
    <author><name>Ann Lee</name></author>
    <summary>Short summary</summary>
    <content type="html">&lt;p&gt;Body text&lt;/p&gt;</content>
    <category term="atom"/>
    <category term="xml"/>
    <published>2024-01-12T08:00:00Z</published>
  </entry>
</feed>`

func generic(mapping map[string]string) *models.Feed {
	f := &models.Feed{
		ID:           1,
		Name:         "example",
		URL:          "https://example.com/feed.xml",
		Strategy:     models.StrategyGeneric,
		DateFormat:   "%a, %d %b %Y %H:%M:%S %z",
		FieldMapping: mapping,
	}
	f.Normalize()
	return f
}

func TestExtractIncrementalCutoff(t *testing.T) {
	feed := generic(nil)
	last := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	feed.LastFetched = &last

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(rssFeed), source.IncrementalFilters(feed))

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "https://example.com/u2", e.URL)
	assert.Equal(t, "Second post", e.Title)
	assert.Equal(t, "Fresh news", e.Summary)
	assert.Equal(t, "Full **body**", e.Content)
	assert.Equal(t, []string{"Jane Roe"}, e.Authors)
	assert.Equal(t, []string{"go", "release"}, e.Categories)
	require.NotNil(t, e.Published)
	assert.Equal(t, time.Date(2024, 1, 12, 10, 0, 0, 0, time.UTC), *e.Published)
}

func TestExtractWithoutCutoffSkipsOnlyLinkless(t *testing.T) {
	feed := generic(nil)

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(rssFeed), source.Filters{})

	require.Len(t, entries, 2)
	assert.Equal(t, "First & old", entries[0].Title)
	assert.Equal(t, "Old news", entries[0].Content, "content falls back to description")
	assert.Equal(t, []string{"tech"}, entries[0].Categories)
}

func TestExtractMaxEntriesBeforeFiltering(t *testing.T) {
	feed := generic(nil)
	last := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	feed.LastFetched = &last

	filters := source.IncrementalFilters(feed)
	filters.MaxEntries = 1

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(rssFeed), filters)
	assert.Empty(t, entries, "the only retained item is older than the cutoff")
}

func TestExtractCustomTags(t *testing.T) {
	feed := generic(map[string]string{
		"url_field":    "link",
		"title_field":  "description",
		"author_field": "dc:creator",
	})

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(rssFeed), source.Filters{})
	require.Len(t, entries, 2)
	assert.Equal(t, "Old news", entries[0].Title)
	assert.Empty(t, entries[0].Authors)
	assert.Equal(t, []string{"Jane Roe"}, entries[1].Authors)
}

func TestExtractAtom(t *testing.T) {
	feed := generic(nil)
	feed.URL = "https://example.org/atom.xml"

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(atomFeed), source.Filters{})

	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, "https://example.org/posts/1", e.URL)
	assert.Equal(t, "Atom entry", e.Title)
	assert.Equal(t, "Short summary", e.Summary)
	assert.Equal(t, "Body text", e.Content)
	assert.Equal(t, []string{"Ann Lee"}, e.Authors)
	assert.Equal(t, []string{"atom", "xml"}, e.Categories)
	require.NotNil(t, e.Published)
	assert.Equal(t, time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC), *e.Published)
}

func TestExtractAtomPersonUsesName(t *testing.T) {
	payload := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <title>Two authors</title>
    <link href="https://example.org/posts/2"/>
    <author><name>Jane Doe</name><email>jane@example.org</email></author>
    <author><name>Max Mustermann</name><uri>https://example.org/max</uri></author>
    <updated>2024-01-12T08:00:00Z</updated>
  </entry>
</feed>`
	feed := generic(nil)
	feed.URL = "https://example.org/atom.xml"

	entries := New(source.Deps{}).Extract(context.Background(), feed, []byte(payload), source.Filters{})

	require.Len(t, entries, 1)
	assert.Equal(t, []string{"Jane Doe", "Max Mustermann"}, entries[0].Authors)
}

func TestExtractMalformedPayload(t *testing.T) {
	feed := generic(nil)

	assert.Empty(t, New(source.Deps{}).Extract(context.Background(), feed, []byte("{not xml"), source.Filters{}))
	assert.Empty(t, New(source.Deps{}).Extract(context.Background(), feed, []byte("<html><body>nothing</body></html>"), source.Filters{}))
}

type fakeEnricher struct{}

func (fakeEnricher) Enrich(context.Context, string) (*source.Enrichment, error) {
	return &source.Enrichment{
		Text:     "A considerably longer article body taken from the page",
		Authors:  []string{"Page Author"},
		Keywords: []string{"page", "keywords"},
	}, nil
}

func TestExtractFullContent(t *testing.T) {
	feed := generic(nil)
	feed.ExtractFullContent = true

	entries := New(source.Deps{Enricher: fakeEnricher{}}).Extract(context.Background(), feed, []byte(rssFeed), source.Filters{})

	require.Len(t, entries, 2)
	assert.Equal(t, "A considerably longer article body taken from the page", entries[0].Content)
	assert.Equal(t, []string{"Page Author"}, entries[0].Authors)
	assert.Equal(t, []string{"page", "keywords"}, entries[0].MetaKeywords)
}
