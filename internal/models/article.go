package models

import (
	"time"
)

// Article column names used for partial updates
const (
	ColTitle        = "title"
	ColContent      = "content"
	ColAuthors      = "authors"
	ColCategories   = "categories"
	ColMetaKeywords = "meta_keywords"
	ColPublishedAt  = "published_at"
	ColUpdatedAt    = "updated_at"
)

// ArticleColumns lists the mutable article columns in a stable order
var ArticleColumns = []string{ColTitle, ColContent, ColAuthors, ColCategories, ColMetaKeywords, ColPublishedAt}

// Article is the persisted, deduplicated representation of an entry
type Article struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	URL          string      `gorm:"uniqueIndex;not null" json:"url"`
	FeedID       uint        `gorm:"index;not null" json:"feed_id"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	Authors      StringSlice `gorm:"type:json" json:"authors"`
	Categories   StringSlice `gorm:"type:json" json:"categories"`
	MetaKeywords StringSlice `gorm:"type:json" json:"meta_keywords"`
	PublishedAt  *time.Time  `gorm:"index" json:"published_at"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// Entry is one extracted, not yet persisted unit of content
type Entry struct {
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	Summary      string     `json:"summary"`
	Content      string     `json:"content"`
	Authors      []string   `json:"authors"`
	Categories   []string   `json:"categories"`
	MetaKeywords []string   `json:"meta_keywords"`
	Published    *time.Time `json:"published,omitempty"`
}

// ToArticle converts the entry into a new record owned by feedID
func (e Entry) ToArticle(feedID uint) *Article {
	return &Article{
		URL:          e.URL,
		FeedID:       feedID,
		Title:        e.Title,
		Content:      e.Content,
		Authors:      StringSlice(e.Authors),
		Categories:   StringSlice(e.Categories),
		MetaKeywords: StringSlice(e.MetaKeywords),
		PublishedAt:  e.Published,
	}
}
