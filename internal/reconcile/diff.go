package reconcile

import (
	"strings"

	"github.com/feed-collector/internal/models"
)

// Apply merges an incoming entry into a stored record and returns the
// columns that changed. Text is compared after trimming, lists as sets,
// and the published date only ever moves forward.
func Apply(stored *models.Article, e models.Entry) []string {
	var changed []string

	if strings.TrimSpace(stored.Title) != strings.TrimSpace(e.Title) {
		stored.Title = e.Title
		changed = append(changed, models.ColTitle)
	}
	if strings.TrimSpace(stored.Content) != strings.TrimSpace(e.Content) {
		stored.Content = e.Content
		changed = append(changed, models.ColContent)
	}
	if !SameSet(stored.Authors, e.Authors) {
		stored.Authors = models.StringSlice(e.Authors)
		changed = append(changed, models.ColAuthors)
	}
	if !SameSet(stored.Categories, e.Categories) {
		stored.Categories = models.StringSlice(e.Categories)
		changed = append(changed, models.ColCategories)
	}
	if !SameSet(stored.MetaKeywords, e.MetaKeywords) {
		stored.MetaKeywords = models.StringSlice(e.MetaKeywords)
		changed = append(changed, models.ColMetaKeywords)
	}
	if e.Published != nil && (stored.PublishedAt == nil || e.Published.After(*stored.PublishedAt)) {
		p := e.Published.UTC()
		stored.PublishedAt = &p
		changed = append(changed, models.ColPublishedAt)
	}

	return changed
}

// SameSet reports whether a and b hold the same values, ignoring order
// and repetition.
func SameSet(a, b []string) bool {
	as, bs := toSet(a), toSet(b)
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[strings.TrimSpace(v)] = struct{}{}
	}
	return set
}
