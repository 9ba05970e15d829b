package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStrategy(t *testing.T) {
	cases := map[string]Strategy{
		"":        StrategyGeneric,
		"RSS":     StrategyGeneric,
		"json":    StrategyJSON,
		"article": StrategyHTML,
		" html ":  StrategyHTML,
	}
	for in, want := range cases {
		got, err := ParseStrategy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseStrategy("csv")
	assert.ErrorIs(t, err, ErrInvalidFeed)
}

func TestNewFeedCanonicalisesMapping(t *testing.T) {
	f, err := NewFeed("Example", "https://example.com/api", StrategyJSON, map[string]string{
		"url_field":      "link",
		"description":    "teaser",
		"published_date": "meta.date",
	})
	require.NoError(t, err)

	assert.Equal(t, "link", f.Field(FieldURL))
	assert.Equal(t, "teaser", f.Field(FieldSummary))
	assert.Equal(t, "meta.date", f.Field(FieldPublished))
	assert.Equal(t, "title", f.Field(FieldTitle), "falls back to strategy default")
	assert.Equal(t, "items", f.ContainerOrDefault())
	assert.Equal(t, "%a, %d %b %Y %H:%M:%S %Z", f.DateFormatOrDefault())
}

func TestFeedValidate(t *testing.T) {
	_, err := NewFeed("", "https://example.com", StrategyGeneric, nil)
	assert.ErrorIs(t, err, ErrInvalidFeed)

	_, err = NewFeed("x", "example.com/feed", StrategyGeneric, nil)
	assert.ErrorIs(t, err, ErrInvalidFeed)

	_, err = NewFeed("x", "https://example.com", StrategyHTML, map[string]string{"url": "a"})
	assert.ErrorIs(t, err, ErrInvalidFeed, "html without container")

	f := &Feed{Name: "x", URL: "https://example.com", Strategy: StrategyHTML, Container: "article", FieldMapping: FieldMapping{"url": "a"}}
	assert.NoError(t, f.Validate())
}

func TestFeedIsDue(t *testing.T) {
	now := time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC)
	f := &Feed{CallFrequencyMinutes: 30}

	assert.True(t, f.IsDue(now), "never scheduled")

	last, next := f.Schedule(now)
	f.LastFetched, f.NextFetch = &last, &next
	assert.False(t, f.IsDue(now.Add(29*time.Minute)))
	assert.True(t, f.IsDue(now.Add(30*time.Minute)))
	assert.Equal(t, 30*time.Minute, next.Sub(last))

	f.CallFrequencyMinutes = 0
	assert.Equal(t, time.Hour, f.Frequency())
}

func TestCarrySchedule(t *testing.T) {
	now := time.Date(2024, 1, 11, 12, 0, 0, 0, time.UTC)
	stored := &Feed{CallFrequencyMinutes: 30}
	last, next := stored.Schedule(now)
	stored.LastFetched, stored.NextFetch = &last, &next

	f := &Feed{CallFrequencyMinutes: 120}
	f.CarrySchedule(stored)
	require.NotNil(t, f.NextFetch)
	assert.Equal(t, now, *f.LastFetched)
	assert.Equal(t, now.Add(2*time.Hour), *f.NextFetch)

	fresh := &Feed{}
	fresh.CarrySchedule(&Feed{})
	assert.Nil(t, fresh.LastFetched)
	assert.Nil(t, fresh.NextFetch)
}

func TestStringSliceScan(t *testing.T) {
	var s StringSlice
	require.NoError(t, s.Scan(`["a","b"]`))
	assert.Equal(t, StringSlice{"a", "b"}, s)

	require.NoError(t, s.Scan([]byte(`["c"]`)))
	assert.Equal(t, StringSlice{"c"}, s)

	v, err := StringSlice(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}
