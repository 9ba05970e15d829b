package rss

import (
	"context"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/internal/source"
)

// Extractor implements source.Extractor for RSS and Atom documents using
// configurable tag names.
type Extractor struct {
	deps source.Deps
}

// New creates a generic syndication extractor
func New(deps source.Deps) *Extractor {
	deps = deps.WithDefaults()
	deps.Log = deps.Log.WithStrategy(string(models.StrategyGeneric))
	return &Extractor{deps: deps}
}

// Strategy returns "generic"
func (e *Extractor) Strategy() models.Strategy {
	return models.StrategyGeneric
}

// Extract parses payload as XML and maps each item or entry
func (e *Extractor) Extract(ctx context.Context, feed *models.Feed, payload []byte, filters source.Filters) []models.Entry {
	log := e.deps.Log.WithFeed(feed.ID, feed.Name)

	root, err := parseTree(payload)
	if err != nil {
		log.Warn().Err(err).Str("url", feed.URL).Msg("Failed to parse XML feed")
		return nil
	}

	items := containers(root, feed.ContainerOrDefault())
	if len(items) == 0 {
		log.Warn().Str("url", feed.URL).Str("container", feed.ContainerOrDefault()).Msg("No entries found in feed")
		return nil
	}
	items = source.Limit(items, filters.MaxEntries)

	stamps := structTimes(payload, len(items))
	dateFormat := feed.DateFormatOrDefault()

	entries := make([]models.Entry, 0, len(items))
	for i, item := range items {
		if ctx.Err() != nil {
			break
		}

		link := linkValue(item, feed.Field(models.FieldURL))
		if link == "" {
			log.Debug().Int("index", i).Msg("Skipping entry without URL")
			continue
		}

		description := text(item, feed.Field(models.FieldSummary))
		content := text(item, feed.Field(models.FieldContent))
		if content == "" {
			content = description
		}

		pubRaw := text(item, feed.Field(models.FieldPublished))
		published := e.deps.Dates.Normalize(pubRaw, dateFormat, stamps.lookup(link, i)...)
		if !filters.Keep(published) {
			continue
		}

		entry := models.Entry{
			URL:        link,
			Title:      normalize.Clean(text(item, feed.Field(models.FieldTitle))),
			Summary:    description,
			Content:    content,
			Authors:    authors(item, feed.Field(models.FieldAuthor)),
			Categories: categories(item, feed.Field(models.FieldCategories)),
			Published:  published,
		}

		e.deps.Enrich(ctx, feed, &entry)
		entry.Content = e.deps.Content.Markdown(entry.Content)

		entries = append(entries, entry)
	}

	log.Debug().
		Int("items", len(items)).
		Int("entries", len(entries)).
		Msg("Extracted syndication entries")

	return entries
}

// containers returns the elements of the first tag in the comma separated
// list that occurs in the document.
func containers(root *node, tags string) []*node {
	for _, tag := range strings.Split(tags, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if found := root.findAll(tag); len(found) > 0 {
			return found
		}
	}
	return nil
}

// alternatives splits a "a|b" locator
func alternatives(locator string) []string {
	var out []string
	for _, tag := range strings.Split(locator, "|") {
		if tag = strings.TrimSpace(tag); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

func text(item *node, locator string) string {
	for _, tag := range alternatives(locator) {
		if n := item.find(tag); n != nil {
			if v := n.value(); v != "" {
				return v
			}
		}
	}
	return ""
}

// linkValue prefers an alternate link when several are present
func linkValue(item *node, locator string) string {
	for _, tag := range alternatives(locator) {
		var fallback string
		for _, n := range item.findAll(tag) {
			v := n.value("href", "url")
			if v == "" {
				continue
			}
			rel := n.attrs["rel"]
			if rel == "" || rel == "alternate" {
				return v
			}
			if fallback == "" {
				fallback = v
			}
		}
		if fallback != "" {
			return fallback
		}
	}
	return ""
}

// categories collects every matching sibling, not only the first
// authors collects every matching author. Atom person constructs resolve
// to their name so email and uri children stay out of the value.
func authors(item *node, locator string) []string {
	var values []string
	for _, tag := range alternatives(locator) {
		for _, n := range item.findAll(tag) {
			if name := n.child("name"); name != nil {
				values = append(values, name.innerText())
				continue
			}
			values = append(values, n.value())
		}
		if len(values) > 0 {
			break
		}
	}
	return normalize.List(values...)
}

func categories(item *node, locator string) []string {
	var values []string
	for _, tag := range alternatives(locator) {
		for _, n := range item.findAll(tag) {
			values = append(values, n.value("term", "label"))
		}
	}
	return normalize.List(values...)
}

// timestamps holds parsed dates from gofeed, keyed by link and position
type timestamps struct {
	byLink  map[string][]*time.Time
	byIndex [][]*time.Time
}

func structTimes(payload []byte, count int) timestamps {
	ts := timestamps{byLink: make(map[string][]*time.Time)}
	parsed, err := gofeed.NewParser().ParseString(string(payload))
	if err != nil {
		return ts
	}
	for _, it := range parsed.Items {
		cands := []*time.Time{it.PublishedParsed, it.UpdatedParsed}
		if it.Link != "" {
			ts.byLink[it.Link] = cands
		}
		ts.byIndex = append(ts.byIndex, cands)
	}
	if len(ts.byIndex) < count {
		ts.byIndex = nil
	}
	return ts
}

func (ts timestamps) lookup(link string, index int) []*time.Time {
	if c, ok := ts.byLink[link]; ok {
		return c
	}
	if index < len(ts.byIndex) {
		return ts.byIndex[index]
	}
	return nil
}

var _ source.Extractor = (*Extractor)(nil)
