package normalize

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"golang.org/x/text/unicode/norm"
)

// SummaryLength is the rune budget for summaries derived from content
const SummaryLength = 300

const ellipsis = "..."

var htmlTag = regexp.MustCompile(`</?[a-zA-Z][^>]*>|<!--|&[a-zA-Z]+;|&#[0-9]+;`)

// ContentNormalizer converts extracted HTML or plain text into Markdown.
// Converters are not safe for concurrent use, so each call borrows one
// from a pool.
type ContentNormalizer struct {
	pool sync.Pool
}

// NewContentNormalizer creates a normalizer that strips script and style
func NewContentNormalizer() *ContentNormalizer {
	c := &ContentNormalizer{}
	c.pool.New = func() any {
		conv := md.NewConverter("", true, nil)
		conv.Remove("script", "style", "noscript", "iframe")
		return conv
	}
	return c
}

// Markdown returns raw as trimmed Markdown. Plain text is returned as is
// so its line breaks survive; conversion failures fall back to the trimmed
// input.
func (c *ContentNormalizer) Markdown(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	raw = norm.NFC.String(raw)
	if !htmlTag.MatchString(raw) {
		return raw
	}

	conv := c.pool.Get().(*md.Converter)
	defer c.pool.Put(conv)

	out, err := conv.ConvertString(raw)
	if err != nil {
		return raw
	}
	return strings.TrimSpace(out)
}

// Truncate shortens s to at most n runes, appending "..." when it cut.
// Cutting on rune boundaries keeps multi-byte text valid.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRightFunc(string(runes[:n]), isSpace) + ellipsis
}

// Summary prefers an explicit description and otherwise derives one from
// the content.
func Summary(description, content string) string {
	if d := strings.TrimSpace(description); d != "" {
		return d
	}
	return Truncate(strings.TrimSpace(content), SummaryLength)
}

// Clean collapses whitespace in short text fields such as titles
func Clean(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// List trims every value and drops empties and duplicates, keeping order
func List(values ...string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = Clean(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList accepts a comma separated string and returns its trimmed parts
func SplitList(s string) []string {
	return List(strings.Split(s, ",")...)
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
