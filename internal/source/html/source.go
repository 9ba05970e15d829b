package html

import (
	"bytes"
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/internal/source"
)

// Extractor implements source.Extractor for HTML listing pages using one
// container selector and a CSS selector per field.
type Extractor struct {
	deps source.Deps
}

// New creates an HTML extractor
func New(deps source.Deps) *Extractor {
	deps = deps.WithDefaults()
	deps.Log = deps.Log.WithStrategy(string(models.StrategyHTML))
	return &Extractor{deps: deps}
}

// Strategy returns "html"
func (e *Extractor) Strategy() models.Strategy {
	return models.StrategyHTML
}

// Extract selects the article blocks and resolves each mapped field
func (e *Extractor) Extract(ctx context.Context, feed *models.Feed, payload []byte, filters source.Filters) []models.Entry {
	log := e.deps.Log.WithFeed(feed.ID, feed.Name)

	container := feed.ContainerOrDefault()
	if container == "" {
		log.Warn().Msg("HTML feed has no container selector")
		return nil
	}

	reader, err := charset.NewReader(bytes.NewReader(payload), "text/html")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to detect page encoding")
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		log.Warn().Err(err).Str("url", feed.URL).Msg("Failed to parse HTML page")
		return nil
	}

	blocks := doc.Find(container)
	if blocks.Length() == 0 {
		log.Warn().Str("container", container).Msg("No article blocks found")
		return nil
	}

	base, _ := url.Parse(feed.URL)
	dateFormat := feed.DateFormatOrDefault()

	var nodes []*goquery.Selection
	blocks.Each(func(_ int, s *goquery.Selection) { nodes = append(nodes, s) })
	nodes = source.Limit(nodes, filters.MaxEntries)

	entries := make([]models.Entry, 0, len(nodes))
	for i, block := range nodes {
		if ctx.Err() != nil {
			break
		}

		link := resolveURL(base, first(block, feed.Field(models.FieldURL), "href", "content"))
		if link == "" {
			log.Debug().Int("index", i).Msg("Skipping block without URL")
			continue
		}

		var published = e.deps.Dates.Normalize(first(block, feed.Field(models.FieldPublished), "content", "datetime"), dateFormat)
		if !filters.Keep(published) {
			continue
		}

		description := first(block, feed.Field(models.FieldSummary))
		content := joined(block, feed.Field(models.FieldContent))
		if content == "" {
			content = description
		}
		cats := all(block, feed.Field(models.FieldCategories))

		entry := models.Entry{
			URL:          link,
			Title:        first(block, feed.Field(models.FieldTitle), "content"),
			Content:      content,
			Authors:      normalize.List(first(block, feed.Field(models.FieldAuthor), "content")),
			Categories:   cats,
			MetaKeywords: all(block, feed.Field(models.FieldKeywords), "content"),
			Published:    published,
		}

		e.deps.Enrich(ctx, feed, &entry)
		entry.Content = e.deps.Content.Markdown(entry.Content)
		entry.Summary = normalize.Summary(description, entry.Content)
		if len(entry.MetaKeywords) == 0 {
			entry.MetaKeywords = cats
		}

		entries = append(entries, entry)
	}

	log.Debug().
		Int("blocks", len(nodes)).
		Int("entries", len(entries)).
		Msg("Extracted HTML entries")

	return entries
}

// first resolves the first match of selector, preferring the given
// attributes over visible text.
func first(block *goquery.Selection, selector string, attrs ...string) string {
	if selector == "" {
		return ""
	}
	s := block.Find(selector).First()
	if s.Length() == 0 {
		return ""
	}
	return value(s, attrs...)
}

// all resolves every match of selector
func all(block *goquery.Selection, selector string, attrs ...string) []string {
	if selector == "" {
		return []string{}
	}
	var values []string
	block.Find(selector).Each(func(_ int, s *goquery.Selection) {
		values = append(values, value(s, attrs...))
	})
	return normalize.List(values...)
}

// joined concatenates the text of every match with newlines
func joined(block *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	var parts []string
	block.Find(selector).Each(func(_ int, s *goquery.Selection) {
		if t := strings.TrimSpace(s.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

func value(s *goquery.Selection, attrs ...string) string {
	for _, a := range attrs {
		if v, ok := s.Attr(a); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return normalize.Clean(s.Text())
}

func resolveURL(base *url.URL, raw string) string {
	if raw == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

var _ source.Extractor = (*Extractor)(nil)
