package enrich

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"

	"github.com/feed-collector/internal/normalize"
	"github.com/feed-collector/internal/source"
	"github.com/feed-collector/pkg/logger"
)

var bylineSplit = regexp.MustCompile(`(?i)\s*(?:,|&|\band\b)\s*`)

// Enricher downloads an article page and extracts its readable body,
// byline and keyword metadata.
type Enricher struct {
	fetcher source.Fetcher
	log     *logger.Logger
}

// New creates an enricher. fetcher should carry the shorter enrichment
// timeout.
func New(fetcher source.Fetcher, log *logger.Logger) *Enricher {
	return &Enricher{
		fetcher: fetcher,
		log:     log.WithComponent("enrich"),
	}
}

// Enrich implements source.Enricher
func (e *Enricher) Enrich(ctx context.Context, articleURL string) (*source.Enrichment, error) {
	body, err := e.fetcher.Fetch(ctx, articleURL)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty article page %s", articleURL)
	}

	pageURL, err := url.Parse(articleURL)
	if err != nil {
		return nil, fmt.Errorf("invalid article url %s: %w", articleURL, err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract content from %s: %w", articleURL, err)
	}

	result := &source.Enrichment{
		Text:    strings.TrimSpace(article.TextContent),
		Authors: splitByline(article.Byline),
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		if len(result.Authors) == 0 {
			result.Authors = metaAuthors(doc)
		}
		result.Keywords = metaKeywords(doc)
	}

	e.log.Debug().
		Str("url", articleURL).
		Int("text_length", len(result.Text)).
		Int("authors", len(result.Authors)).
		Int("keywords", len(result.Keywords)).
		Msg("Article enriched")

	return result, nil
}

func splitByline(byline string) []string {
	byline = strings.TrimSpace(byline)
	if len(byline) >= 3 && strings.EqualFold(byline[:3], "by ") {
		byline = byline[3:]
	}
	if byline == "" {
		return nil
	}
	return normalize.List(bylineSplit.Split(byline, -1)...)
}

func metaAuthors(doc *goquery.Document) []string {
	var authors []string
	doc.Find(`meta[name="author"], meta[property="article:author"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		if v != "" && !strings.HasPrefix(v, "http") {
			authors = append(authors, v)
		}
	})
	return normalize.List(authors...)
}

func metaKeywords(doc *goquery.Document) []string {
	var keywords []string
	doc.Find(`meta[name="keywords"], meta[name="news_keywords"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		keywords = append(keywords, strings.Split(v, ",")...)
	})
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		v, _ := s.Attr("content")
		keywords = append(keywords, v)
	})
	return normalize.List(keywords...)
}

var _ source.Enricher = (*Enricher)(nil)
