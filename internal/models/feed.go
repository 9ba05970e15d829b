package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Strategy selects the extractor used for a feed
type Strategy string

const (
	StrategyGeneric Strategy = "generic"
	StrategyJSON    Strategy = "json"
	StrategyHTML    Strategy = "html"
)

// Strategies lists every supported extraction strategy
var Strategies = []Strategy{StrategyGeneric, StrategyJSON, StrategyHTML}

// ErrInvalidFeed is returned when a feed definition fails validation
var ErrInvalidFeed = errors.New("invalid feed")

// ParseStrategy converts a user supplied tag into a Strategy.
// "rss", "atom" and "xml" are accepted for generic, "article" for html.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "generic", "rss", "atom", "xml":
		return StrategyGeneric, nil
	case "json", "json_feed", "api":
		return StrategyJSON, nil
	case "html", "article":
		return StrategyHTML, nil
	}
	return "", fmt.Errorf("%w: unknown strategy %q", ErrInvalidFeed, s)
}

// Canonical field-mapping keys
const (
	FieldURL        = "url"
	FieldTitle      = "title"
	FieldSummary    = "summary"
	FieldContent    = "content"
	FieldAuthor     = "author"
	FieldPublished  = "published"
	FieldCategories = "categories"
	FieldKeywords   = "keywords"
)

var fieldAliases = map[string]string{
	"link":           FieldURL,
	"description":    FieldSummary,
	"published_date": FieldPublished,
	"pub_date":       FieldPublished,
	"date":           FieldPublished,
	"category":       FieldCategories,
	"authors":        FieldAuthor,
	"meta_keywords":  FieldKeywords,
}

// Default locators per strategy. Generic locators accept "a|b" alternatives
// so the same mapping covers RSS items and Atom entries.
var defaultMappings = map[Strategy]FieldMapping{
	StrategyGeneric: {
		FieldURL:        "link",
		FieldTitle:      "title",
		FieldSummary:    "description|summary",
		FieldContent:    "content:encoded|content",
		FieldAuthor:     "author|dc:creator",
		FieldPublished:  "pubDate|published|updated|dc:date",
		FieldCategories: "category",
	},
	StrategyJSON: {
		FieldURL:        "url",
		FieldTitle:      "title",
		FieldSummary:    "summary",
		FieldContent:    "content",
		FieldAuthor:     "author",
		FieldPublished:  "published_date",
		FieldCategories: "categories",
	},
	StrategyHTML: {},
}

var defaultContainers = map[Strategy]string{
	StrategyGeneric: "item,entry",
	StrategyJSON:    "items",
}

var defaultDateFormats = map[Strategy]string{
	StrategyGeneric: "%a, %d %b %Y %H:%M:%S %z",
	StrategyJSON:    "%a, %d %b %Y %H:%M:%S %Z",
	StrategyHTML:    "%Y-%m-%dT%H:%M:%S%z",
}

// DefaultFrequencyMinutes is used when a feed has no call frequency
const DefaultFrequencyMinutes = 60

// Feed is a configured remote source with an extraction strategy and a
// fetch cadence. Only LastFetched and NextFetch are written by the pipeline.
type Feed struct {
	ID                   uint         `gorm:"primaryKey" json:"id" yaml:"-"`
	Name                 string       `gorm:"not null" json:"name" yaml:"name"`
	URL                  string       `gorm:"uniqueIndex;not null" json:"url" yaml:"url"`
	Strategy             Strategy     `gorm:"not null;default:'generic'" json:"strategy" yaml:"strategy"`
	Container            string       `json:"container" yaml:"container"` // item tags, JSON items path or CSS container selector
	FieldMapping         FieldMapping `gorm:"type:json" json:"field_mapping" yaml:"field_mapping"`
	DateFormat           string       `json:"date_format" yaml:"date_format"`
	ExtractFullContent   bool         `gorm:"default:false" json:"extract_full_content" yaml:"extract_full_content"`
	CallFrequencyMinutes uint         `gorm:"default:60" json:"call_frequency_minutes" yaml:"call_frequency_minutes"`
	LastFetched          *time.Time   `json:"last_fetched" yaml:"-"`
	NextFetch            *time.Time   `gorm:"index" json:"next_fetch" yaml:"-"`
	CreatedAt            time.Time    `gorm:"autoCreateTime" json:"created_at" yaml:"-"`
	UpdatedAt            time.Time    `gorm:"autoUpdateTime" json:"updated_at" yaml:"-"`
}

// NewFeed builds a validated feed with strategy defaults applied
func NewFeed(name, rawURL string, strategy Strategy, mapping map[string]string) (*Feed, error) {
	f := &Feed{
		Name:         name,
		URL:          rawURL,
		Strategy:     strategy,
		FieldMapping: FieldMapping(mapping),
	}
	f.Normalize()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Normalize canonicalises mapping aliases and trims user input
func (f *Feed) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.URL = strings.TrimSpace(f.URL)
	f.Container = strings.TrimSpace(f.Container)
	if f.Strategy == "" {
		f.Strategy = StrategyGeneric
	}
	if len(f.FieldMapping) == 0 {
		return
	}
	canon := make(FieldMapping, len(f.FieldMapping))
	for k, v := range f.FieldMapping {
		key := strings.ToLower(strings.TrimSpace(k))
		key = strings.TrimSuffix(key, "_field")
		key = strings.TrimSuffix(key, "_path")
		if alias, ok := fieldAliases[key]; ok {
			key = alias
		}
		if v = strings.TrimSpace(v); v != "" {
			canon[key] = v
		}
	}
	f.FieldMapping = canon
}

// Validate checks the required attributes for the feed's strategy
func (f *Feed) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFeed)
	}
	u, err := url.Parse(f.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: url %q must be an absolute http(s) URL", ErrInvalidFeed, f.URL)
	}
	if _, ok := defaultMappings[f.Strategy]; !ok {
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidFeed, f.Strategy)
	}
	if f.Strategy == StrategyHTML {
		if f.Container == "" {
			return fmt.Errorf("%w: html feeds need a container selector", ErrInvalidFeed)
		}
		if f.FieldMapping[FieldURL] == "" {
			return fmt.Errorf("%w: html feeds need a url selector", ErrInvalidFeed)
		}
	}
	return nil
}

// Field returns the locator for a canonical field, falling back to the
// strategy default. An empty result means the field is not extracted.
func (f *Feed) Field(name string) string {
	if v, ok := f.FieldMapping[name]; ok {
		return v
	}
	return defaultMappings[f.Strategy][name]
}

// ContainerOrDefault returns the entry locator for the feed's strategy
func (f *Feed) ContainerOrDefault() string {
	if f.Container != "" {
		return f.Container
	}
	return defaultContainers[f.Strategy]
}

// DateFormatOrDefault returns the configured primary date format
func (f *Feed) DateFormatOrDefault() string {
	if f.DateFormat != "" {
		return f.DateFormat
	}
	return defaultDateFormats[f.Strategy]
}

// Frequency returns the fetch interval
func (f *Feed) Frequency() time.Duration {
	minutes := f.CallFrequencyMinutes
	if minutes == 0 {
		minutes = DefaultFrequencyMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// IsDue reports whether the feed should be fetched at now. A feed that was
// never scheduled is always due.
func (f *Feed) IsDue(now time.Time) bool {
	return f.NextFetch == nil || !now.Before(*f.NextFetch)
}

// Schedule returns the bookkeeping pair written after a fetch at now
func (f *Feed) Schedule(now time.Time) (time.Time, time.Time) {
	return now, now.Add(f.Frequency())
}

// CarrySchedule keeps the fetch history of a stored definition and moves
// next_fetch to match the current frequency.
func (f *Feed) CarrySchedule(stored *Feed) {
	f.LastFetched = stored.LastFetched
	f.NextFetch = stored.NextFetch
	if f.LastFetched != nil {
		_, next := f.Schedule(*f.LastFetched)
		f.NextFetch = &next
	}
}
