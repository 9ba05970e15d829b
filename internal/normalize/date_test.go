package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePrimaryFormat(t *testing.T) {
	n := NewDateNormalizer(nil)

	got := n.Normalize("Wed, 10 Jan 2024 08:30:00 +0200", "%a, %d %b %Y %H:%M:%S %z")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 10, 6, 30, 0, 0, time.UTC), *got)
	assert.Equal(t, time.UTC, got.Location())
}

func TestNormalizeGoLayoutAsPrimary(t *testing.T) {
	n := NewDateNormalizer(nil)

	got := n.Normalize("10/01/2024", "02/01/2006")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), *got)
}

func TestNormalizePrefersParsedCandidateOverStringFallbacks(t *testing.T) {
	n := NewDateNormalizer(nil)
	parsed := time.Date(2024, 3, 1, 0, 0, 0, 0, time.FixedZone("X", 3600))

	got := n.Normalize("2024-01-01T00:00:00Z", "%d.%m.%Y", nil, &parsed)
	require.NotNil(t, got)
	assert.Equal(t, parsed.UTC(), *got)
}

func TestNormalizeFallbacks(t *testing.T) {
	n := NewDateNormalizer(nil)

	cases := map[string]time.Time{
		"2024-01-12T09:00:00Z":            time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC),
		"Fri, 12 Jan 2024 09:00:00 GMT":   time.Date(2024, 1, 12, 9, 0, 0, 0, time.UTC),
		"Fri, 5 Jan 2024 09:00:00 +0000":  time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC),
		"2024-01-12":                      time.Date(2024, 1, 12, 0, 0, 0, 0, time.UTC),
		"2024-01-12 10:11:12":             time.Date(2024, 1, 12, 10, 11, 12, 0, time.UTC),
	}
	for raw, want := range cases {
		got := n.Normalize(raw, "%Y/%m/%d")
		require.NotNil(t, got, raw)
		assert.True(t, want.Equal(*got), "%s: got %s", raw, got)
	}
}

func TestNormalizeNaiveUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	n := NewDateNormalizer(loc)

	got := n.Normalize("2024-01-12T10:00:00", "%Y-%m-%dT%H:%M:%S")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 12, 8, 0, 0, 0, time.UTC), *got)
}

func TestNormalizeUnparseableIsAbsent(t *testing.T) {
	n := NewDateNormalizer(nil)

	assert.Nil(t, n.Normalize("not a date at all", "%Y-%m-%d"))
	assert.Nil(t, n.Normalize("", "%Y-%m-%d"))
	assert.Nil(t, n.Normalize("", "", nil))
}

func TestUnix(t *testing.T) {
	got := Unix(1704067200)
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), *got)

	ms := Unix(1704067200000)
	require.NotNil(t, ms)
	assert.Equal(t, *got, *ms)

	assert.Nil(t, Unix(0))
}
