package parser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"paperdigest/internal/config"
	"paperdigest/internal/domain"
	"paperdigest/internal/ports"
	"paperdigest/internal/scanner"
)

// StrategySource implements ArticleSource via registered scanner strategies.
// Sites run sequentially in declaration order; a failing site is collected
// as a warning and never aborts the remaining sites.
type StrategySource struct {
	registry *scanner.Registry
	sites    []config.SiteConfig
	logger   *slog.Logger
}

var _ ports.ArticleSource = (*StrategySource)(nil)

// NewStrategySource wires the scanner registry with config-defined sites.
func NewStrategySource(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sites:    sites,
		logger:   log,
	}
}

// FetchWindow iterates over configured sites and executes their scanners.
// The returned error aggregates per-site failures; articles collected before
// a failure are still returned alongside it.
func (s *StrategySource) FetchWindow(ctx context.Context, window time.Duration) ([]domain.Article, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	s.debug("fetch window", "sites", len(s.sites), "window", window)

	var (
		aggregated []domain.Article
		failures   error
	)
	for _, site := range s.sites {
		if ctx.Err() != nil {
			return aggregated, ctx.Err()
		}

		strategy, err := s.registry.Resolve(site.Scanner)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("site %s: %w", site.Name, err))
			continue
		}

		req := scanner.Request{
			Window:     window,
			SiteName:   site.Name,
			Options:    site.Options,
			Categories: toScannerCategories(site.Categories),
		}

		results, err := strategy.Scan(ctx, req)
		if err != nil {
			failures = multierror.Append(failures, fmt.Errorf("scan site %s: %w", site.Name, err))
		}

		for i := range results {
			if results[i].Source == "" {
				results[i].Source = site.Name
			}
		}
		s.debug("site produced articles", "site", site.Name, "count", len(results))
		aggregated = append(aggregated, results...)
	}

	s.debug("strategy source done", "total_articles", len(aggregated))
	return aggregated, failures
}

func toScannerCategories(cfg []config.CategoryConfig) []scanner.Category {
	categories := make([]scanner.Category, 0, len(cfg))
	for _, cat := range cfg {
		categories = append(categories, scanner.Category{
			Name: cat.Name,
			URL:  cat.URL,
		})
	}
	return categories
}

func (s *StrategySource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
