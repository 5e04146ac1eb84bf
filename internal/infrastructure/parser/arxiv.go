package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/juju/clock"

	"paperdigest/internal/domain"
	"paperdigest/internal/scanner"
)

const (
	arxivQueryURL    = "https://export.arxiv.org/api/query"
	defaultPageSize  = 100
	defaultUserAgent = "paperdigest/1.0"
)

// ArxivOptions tunes the paginated walk of the arXiv API.
type ArxivOptions struct {
	BaseURL   string
	PageSize  int
	Delay     time.Duration
	UserAgent string
}

// ArxivScanner walks category query pages newest-first and collects articles
// published within the requested window.
type ArxivScanner struct {
	client    *http.Client
	clock     clock.Clock
	logger    *slog.Logger
	baseURL   string
	pageSize  int
	delay     time.Duration
	userAgent string
}

var _ scanner.Scanner = (*ArxivScanner)(nil)

// NewArxivScanner wires an HTTP client and a clock; zero options fall back
// to API defaults. A nil clock means wall time.
func NewArxivScanner(client *http.Client, clk clock.Clock, opts ArxivOptions, logger *slog.Logger) *ArxivScanner {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if clk == nil {
		clk = clock.WallClock
	}
	if opts.BaseURL == "" {
		opts.BaseURL = arxivQueryURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}

	return &ArxivScanner{
		client:    client,
		clock:     clk,
		logger:    logger,
		baseURL:   opts.BaseURL,
		pageSize:  opts.PageSize,
		delay:     opts.Delay,
		userAgent: opts.UserAgent,
	}
}

// Name identifies the strategy inside the registry.
func (a *ArxivScanner) Name() string {
	return "arxiv"
}

// Scan walks each configured category sequentially. A category that fails
// mid-pagination contributes what it collected; only context cancellation
// aborts the whole scan.
func (a *ArxivScanner) Scan(ctx context.Context, req scanner.Request) ([]domain.Article, error) {
	if len(req.Categories) == 0 {
		return nil, fmt.Errorf("no categories provided for site %s", req.SiteName)
	}

	var results []domain.Article
	for _, cat := range req.Categories {
		collected, err := a.scanCategory(ctx, cat, req.SiteName, req.Window)
		results = append(results, collected...)
		if err != nil {
			return results, fmt.Errorf("category %s: %w", cat.Name, err)
		}
		a.debug("category done", "category", cat.Name, "count", len(collected))
	}

	return results, nil
}

func (a *ArxivScanner) scanCategory(ctx context.Context, cat scanner.Category, source string, window time.Duration) ([]domain.Article, error) {
	cutoff := a.clock.Now().Add(-window)

	var collected []domain.Article
	for start := 0; ; start += a.pageSize {
		if start > 0 && a.delay > 0 {
			select {
			case <-a.clock.After(a.delay):
			case <-ctx.Done():
				return collected, ctx.Err()
			}
		}

		pageURL, err := a.buildPageURL(cat, start)
		if err != nil {
			return collected, err
		}

		page, err := a.fetchPage(ctx, pageURL, source)
		if err != nil {
			if ctx.Err() != nil {
				return collected, ctx.Err()
			}
			a.warn("page fetch failed, stopping category", "category", cat.Name, "start", start, "error", err)
			return collected, nil
		}

		if len(page) == 0 {
			return collected, nil
		}

		for _, article := range page {
			if article.PublishedAt != nil && article.PublishedAt.Before(cutoff) {
				continue
			}
			collected = append(collected, article)
		}

		// Pages arrive newest-first, so a stale tail means the window is
		// fully covered.
		last := page[len(page)-1]
		if last.PublishedAt != nil && last.PublishedAt.Before(cutoff) {
			return collected, nil
		}

		if len(page) < a.pageSize {
			return collected, nil
		}
	}
}

func (a *ArxivScanner) fetchPage(ctx context.Context, pageURL, source string) ([]domain.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	articles, err := ParsePage(resp.Body, source)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	return articles, nil
}

func (a *ArxivScanner) buildPageURL(cat scanner.Category, start int) (string, error) {
	base := cat.URL
	if base == "" {
		base = a.baseURL
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid category url %s: %w", base, err)
	}

	query := parsed.Query()
	query.Set("search_query", "cat:"+cat.Name)
	query.Set("sortBy", "submittedDate")
	query.Set("sortOrder", "descending")
	query.Set("start", strconv.Itoa(start))
	query.Set("max_results", strconv.Itoa(a.pageSize))
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (a *ArxivScanner) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

func (a *ArxivScanner) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
