package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/feed-collector/internal/models"
)

// feedsFile is the on-disk layout of the feed definitions
type feedsFile struct {
	Feeds []feedEntry `yaml:"feeds"`
}

type feedEntry struct {
	Name                 string            `yaml:"name"`
	URL                  string            `yaml:"url"`
	Strategy             string            `yaml:"strategy"`
	Container            string            `yaml:"container"`
	FieldMapping         map[string]string `yaml:"field_mapping"`
	DateFormat           string            `yaml:"date_format"`
	ExtractFullContent   bool              `yaml:"extract_full_content"`
	CallFrequencyMinutes uint              `yaml:"call_frequency_minutes"`
}

// LoadFeeds reads and validates feed definitions from a YAML file. Every
// invalid definition is reported; none are returned if any fail.
func LoadFeeds(path string) ([]*models.Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds decodes feed definitions from YAML
func ParseFeeds(data []byte) ([]*models.Feed, error) {
	var file feedsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode feeds: %w", err)
	}

	var errs []error
	seen := make(map[string]bool, len(file.Feeds))
	feeds := make([]*models.Feed, 0, len(file.Feeds))

	for i, e := range file.Feeds {
		strategy, err := models.ParseStrategy(e.Strategy)
		if err != nil {
			errs = append(errs, fmt.Errorf("feed %d (%s): %w", i, e.Name, err))
			continue
		}

		feed := &models.Feed{
			Name:                 e.Name,
			URL:                  e.URL,
			Strategy:             strategy,
			Container:            e.Container,
			FieldMapping:         models.FieldMapping(e.FieldMapping),
			DateFormat:           e.DateFormat,
			ExtractFullContent:   e.ExtractFullContent,
			CallFrequencyMinutes: e.CallFrequencyMinutes,
		}
		if feed.CallFrequencyMinutes == 0 {
			feed.CallFrequencyMinutes = models.DefaultFrequencyMinutes
		}
		feed.Normalize()
		if err := feed.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("feed %d (%s): %w", i, e.Name, err))
			continue
		}
		if seen[feed.URL] {
			errs = append(errs, fmt.Errorf("feed %d (%s): duplicate url %s", i, e.Name, feed.URL))
			continue
		}
		seen[feed.URL] = true
		feeds = append(feeds, feed)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return feeds, nil
}
