package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/juju/clock"

	"paperdigest/internal/domain"
	"paperdigest/internal/scanner"
)

// RSSScanner pulls a plain RSS feed; each configured category points at one
// feed URL. Feeds are single-page, so there is no pagination state.
type RSSScanner struct {
	client    *http.Client
	clock     clock.Clock
	logger    *slog.Logger
	userAgent string
}

var _ scanner.Scanner = (*RSSScanner)(nil)

// NewRSSScanner wires an HTTP client and a clock for window filtering.
func NewRSSScanner(client *http.Client, clk clock.Clock, userAgent string, logger *slog.Logger) *RSSScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &RSSScanner{client: client, clock: clk, logger: logger, userAgent: userAgent}
}

// Name identifies the strategy inside the registry.
func (r *RSSScanner) Name() string {
	return "rss"
}

// Scan fetches each configured feed once and keeps items inside the window.
// A feed that fails is logged and skipped; the remaining feeds still run.
func (r *RSSScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no feeds provided for site %s", req.SiteName)
	}

	cutoff := r.clock.Now().Add(-req.Window)

	var results []domain.Article
	for _, cat := range req.Categories {
		articles, err := r.fetchFeed(ctx, cat.URL, req.SiteName)
		if err != nil {
			if ctx.Err() != nil {
				return results, ctx.Err()
			}
			if r.logger != nil {
				r.logger.Warn("feed fetch failed, skipping", "feed", cat.Name, "error", err)
			}
			continue
		}

		for _, article := range articles {
			if article.PublishedAt != nil && article.PublishedAt.Before(cutoff) {
				continue
			}
			results = append(results, article)
		}
	}

	return results, nil
}

func (r *RSSScanner) fetchFeed(ctx context.Context, feedURL, source string) ([]domain.Article, error) {
	if feedURL == "" {
		return nil, fmt.Errorf("feed url is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	articles, err := ParsePage(resp.Body, source)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	return articles, nil
}
