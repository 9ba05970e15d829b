package normalize

import (
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownConvertsHTML(t *testing.T) {
	c := NewContentNormalizer()

	out := c.Markdown("<p>Hello <strong>world</strong></p><script>alert(1)</script>")
	assert.Equal(t, "Hello **world**", out)
}

func TestMarkdownPlainTextAndEmpty(t *testing.T) {
	c := NewContentNormalizer()

	assert.Equal(t, "", c.Markdown("   "))
	assert.Equal(t, "Just text", c.Markdown("  Just text \n"))
	assert.Equal(t, "line one\nline two", c.Markdown("line one\nline two"))
	assert.Equal(t, "Tom & Jerry", c.Markdown("Tom &amp; Jerry"))
}

func TestMarkdownConcurrentUse(t *testing.T) {
	c := NewContentNormalizer()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "Hello **world**", c.Markdown("<p>Hello <b>world</b></p>"))
		}()
	}
	wg.Wait()
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 300))

	long := strings.Repeat("a", 310)
	got := Truncate(long, 300)
	assert.Equal(t, strings.Repeat("a", 300)+"...", got)

	cyr := strings.Repeat("ж", 301)
	got = Truncate(cyr, 300)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 303, utf8.RuneCountInString(got))
}

func TestSummary(t *testing.T) {
	assert.Equal(t, "desc", Summary("  desc ", "content"))
	assert.Equal(t, "content", Summary("", "content"))
	assert.Equal(t, strings.Repeat("b", 300)+"...", Summary("", strings.Repeat("b", 400)))
}

func TestListHelpers(t *testing.T) {
	assert.Equal(t, []string{"go", "rust"}, List(" go ", "", "rust", "go"))
	assert.Equal(t, []string{"a", "b c"}, SplitList("a, b  c ,,"))
	assert.Equal(t, "a b", Clean("  a \n b "))
}
