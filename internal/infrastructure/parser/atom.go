package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"paperdigest/internal/domain"
)

var (
	repeatedSpaceRegex = regexp.MustCompile(`\s+`)
	arxivIDRegex       = regexp.MustCompile(`^\d{4}\.\d{4,5}`)
)

// ParsePage parses one page of Atom or RSS markup into normalized articles.
// Malformed entries are dropped individually; a page-level failure is
// returned as an error and callers treat it as zero entries for the page.
func ParsePage(raw io.Reader, source string) ([]domain.Article, error) {
	feed, err := gofeed.NewParser().Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse feed page: %w", err)
	}

	articles := make([]domain.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		article, ok := normalizeItem(item, source)
		if !ok {
			continue
		}
		articles = append(articles, article)
	}

	return articles, nil
}

func normalizeItem(item *gofeed.Item, source string) (domain.Article, bool) {
	if item == nil {
		return domain.Article{}, false
	}

	identifier := item.GUID
	if identifier == "" {
		identifier = item.Link
	}

	id := DeriveID(identifier)
	if id == "" {
		return domain.Article{}, false
	}

	abstract := item.Description
	if abstract == "" {
		abstract = item.Content
	}

	linkAbs := item.Link
	if linkAbs == "" {
		linkAbs = item.GUID
	}

	publishedAt := item.PublishedParsed
	if publishedAt == nil {
		publishedAt = item.UpdatedParsed
	}

	authors := make([]string, 0, len(item.Authors))
	for _, person := range item.Authors {
		if person == nil || person.Name == "" {
			continue
		}
		authors = append(authors, person.Name)
	}

	categories := item.Categories

	return domain.Article{
		ID:          id,
		Title:       collapseWhitespace(item.Title),
		Abstract:    collapseWhitespace(stripMarkup(abstract)),
		Authors:     authors,
		Categories:  categories,
		Topic:       domain.ClassifyTopic(categories),
		LinkAbs:     linkAbs,
		PublishedAt: publishedAt,
		Source:      source,
	}, true
}

// DeriveID normalizes a feed identifier to a stable article id. Versioned
// arXiv identifiers (2301.00001v2) collapse to their base id (2301.00001).
func DeriveID(raw string) string {
	id := raw
	if idx := strings.Index(id, "/abs/"); idx >= 0 {
		id = id[idx+len("/abs/"):]
	}

	if match := arxivIDRegex.FindString(id); match != "" {
		return match
	}

	if q := strings.Index(id, "?"); q >= 0 {
		id = id[:q]
	}

	return id
}

func collapseWhitespace(value string) string {
	return strings.TrimSpace(repeatedSpaceRegex.ReplaceAllString(value, " "))
}

// stripMarkup drops HTML tags from RSS descriptions; Atom summaries are
// plain text and pass through untouched.
func stripMarkup(value string) string {
	if !strings.Contains(value, "<") {
		return value
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(value))
	if err != nil {
		return value
	}

	return doc.Text()
}
