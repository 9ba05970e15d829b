package normalize

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/ncruces/go-strftime"
)

// fallbackLayouts are tried after the feed's primary format and any
// pre-parsed timestamps supplied by the extractor.
var fallbackLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05-0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	time.RFC822Z,
	time.RFC822,
	time.RFC850,
	time.ANSIC,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// DateNormalizer turns heterogeneous timestamp strings into UTC instants.
// Values without zone information are read in Location.
type DateNormalizer struct {
	loc *time.Location
}

// NewDateNormalizer creates a normalizer; nil means UTC
func NewDateNormalizer(loc *time.Location) *DateNormalizer {
	if loc == nil {
		loc = time.UTC
	}
	return &DateNormalizer{loc: loc}
}

// Location returns the zone used for naive timestamps
func (n *DateNormalizer) Location() *time.Location {
	return n.loc
}

// Normalize parses raw with primaryFormat (strftime directives or a Go
// layout), then the pre-parsed candidates, then the known encodings. It
// returns nil when nothing matches.
func (n *DateNormalizer) Normalize(raw, primaryFormat string, parsed ...*time.Time) *time.Time {
	raw = strings.TrimSpace(raw)

	if raw != "" && primaryFormat != "" {
		if t, ok := n.parsePrimary(raw, primaryFormat); ok {
			return utc(t)
		}
	}

	for _, p := range parsed {
		if p != nil && !p.IsZero() {
			return utc(*p)
		}
	}

	if raw == "" {
		return nil
	}

	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, raw, n.loc); err == nil {
			return utc(t)
		}
	}

	if t, err := dateparse.ParseIn(raw, n.loc); err == nil {
		return utc(t)
	}
	return nil
}

func (n *DateNormalizer) parsePrimary(raw, format string) (time.Time, bool) {
	layout := format
	if strings.Contains(format, "%") {
		l, err := strftime.Layout(format)
		if err != nil {
			return time.Time{}, false
		}
		layout = l
	}
	t, err := time.ParseInLocation(layout, raw, n.loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Unix converts an epoch in seconds (or milliseconds when it is too large
// to be seconds) into a UTC instant.
func Unix(v float64) *time.Time {
	if v <= 0 {
		return nil
	}
	var t time.Time
	if v > 1e12 {
		t = time.UnixMilli(int64(v))
	} else {
		sec := int64(v)
		t = time.Unix(sec, int64((v-float64(sec))*1e9))
	}
	return utc(t)
}

func utc(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}
