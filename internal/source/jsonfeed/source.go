package jsonfeed

import (
	"context"
	"time"

	"github.com/tidwall/gjson"

	"github.com/feed-collector/internal/models"
	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/internal/source"
)

// Extractor implements source.Extractor for JSON APIs with a path based
// field mapping.
type Extractor struct {
	deps source.Deps
}

// New creates a JSON extractor
func New(deps source.Deps) *Extractor {
	deps = deps.WithDefaults()
	deps.Log = deps.Log.WithStrategy(string(models.StrategyJSON))
	return &Extractor{deps: deps}
}

// Strategy returns "json"
func (e *Extractor) Strategy() models.Strategy {
	return models.StrategyJSON
}

// Extract reads the items array at the feed's container path
func (e *Extractor) Extract(ctx context.Context, feed *models.Feed, payload []byte, filters source.Filters) []models.Entry {
	log := e.deps.Log.WithFeed(feed.ID, feed.Name)

	if !gjson.ValidBytes(payload) {
		log.Warn().Str("url", feed.URL).Msg("Payload is not valid JSON")
		return nil
	}
	doc := gjson.ParseBytes(payload)

	itemsPath := feed.ContainerOrDefault()
	items, ok := Resolve(doc, itemsPath)
	if !ok || !items.IsArray() {
		log.Warn().Str("items_path", itemsPath).Msg("Missing items list in JSON feed")
		return nil
	}
	list := source.Limit(items.Array(), filters.MaxEntries)

	dateFormat := feed.DateFormatOrDefault()
	entries := make([]models.Entry, 0, len(list))
	for i, item := range list {
		if ctx.Err() != nil {
			break
		}
		if !item.IsObject() {
			continue
		}

		link := String(item, feed.Field(models.FieldURL))
		if link == "" {
			log.Debug().Int("index", i).Msg("Skipping entry without URL")
			continue
		}

		published := e.published(item, feed.Field(models.FieldPublished), dateFormat)
		if !filters.Keep(published) {
			continue
		}

		cats := listValue(item, feed.Field(models.FieldCategories))
		entry := models.Entry{
			URL:        link,
			Title:      normalize.Clean(String(item, feed.Field(models.FieldTitle))),
			Content:    String(item, feed.Field(models.FieldContent)),
			Authors:    authors(item, feed.Field(models.FieldAuthor)),
			Categories: cats,
			Published:  published,
		}

		e.deps.Enrich(ctx, feed, &entry)
		entry.Content = e.deps.Content.Markdown(entry.Content)
		entry.Summary = normalize.Summary(String(item, feed.Field(models.FieldSummary)), entry.Content)
		if len(entry.MetaKeywords) == 0 {
			entry.MetaKeywords = cats
		}

		entries = append(entries, entry)
	}

	log.Debug().
		Int("items", len(list)).
		Int("entries", len(entries)).
		Msg("Extracted JSON entries")

	return entries
}

// published accepts formatted strings and numeric Unix timestamps
func (e *Extractor) published(item gjson.Result, path, format string) *time.Time {
	v, ok := Resolve(item, path)
	if !ok {
		return nil
	}
	switch v.Type {
	case gjson.Number:
		return e.deps.Dates.Normalize("", format, normalize.Unix(v.Float()))
	case gjson.String:
		return e.deps.Dates.Normalize(v.String(), format)
	}
	return nil
}

// listValue normalizes a list or a comma separated string
func listValue(item gjson.Result, path string) []string {
	v, ok := Resolve(item, path)
	if !ok {
		return []string{}
	}
	if v.IsArray() {
		var values []string
		for _, el := range v.Array() {
			values = append(values, scalarOrName(el))
		}
		return normalize.List(values...)
	}
	if v.Type == gjson.String {
		return normalize.SplitList(v.String())
	}
	return []string{}
}

// authors accepts a name, a list of names or objects with a name key
func authors(item gjson.Result, path string) []string {
	v, ok := Resolve(item, path)
	if !ok {
		return []string{}
	}
	if v.IsArray() {
		var names []string
		for _, el := range v.Array() {
			names = append(names, scalarOrName(el))
		}
		return normalize.List(names...)
	}
	return normalize.List(scalarOrName(v))
}

func scalarOrName(v gjson.Result) string {
	if v.IsObject() {
		return String(v, "name")
	}
	if v.Type == gjson.String || v.Type == gjson.Number {
		return v.String()
	}
	return ""
}

var _ source.Extractor = (*Extractor)(nil)
