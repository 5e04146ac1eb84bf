package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperdigest/internal/civil"
	"paperdigest/internal/domain"
	"paperdigest/internal/ports"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source      ports.ArticleSource
	Store       ports.ArticleStore
	Revalidator ports.Revalidator
	Logger      *slog.Logger

	Location         *time.Location
	FetchWindow      time.Duration
	PopularityWindow time.Duration
	PerTopicLimit    int
}

// Pipeline implements the ingestion workflow: fetch every source, merge and
// deduplicate by id, upsert, then trigger the store-side recomputations.
type Pipeline struct {
	source      ports.ArticleSource
	store       ports.ArticleStore
	revalidator ports.Revalidator
	logger      *slog.Logger

	location         *time.Location
	fetchWindow      time.Duration
	popularityWindow time.Duration
	perTopicLimit    int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	location := deps.Location
	if location == nil {
		location = time.UTC
	}

	return &Pipeline{
		source:           deps.Source,
		store:            deps.Store,
		revalidator:      deps.Revalidator,
		logger:           deps.Logger,
		location:         location,
		fetchWindow:      deps.FetchWindow,
		popularityWindow: deps.PopularityWindow,
		perTopicLimit:    deps.PerTopicLimit,
	}
}

// Run executes one ingestion pass. Fetch and recomputation failures are
// logged and recovered; an upsert failure is terminal for the run. Re-running
// with an overlapping window only overwrites rows, never duplicates them.
func (p *Pipeline) Run(ctx context.Context, now time.Time, reason string) (domain.RunResult, error) {
	log := p.logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", uuid.NewString())

	if reason != "" {
		log.Info("run triggered", "reason", reason)
	}

	articles, err := p.source.FetchWindow(ctx, p.fetchWindow)
	if err != nil {
		if ctx.Err() != nil {
			return domain.RunResult{}, ctx.Err()
		}
		log.Warn("some sources failed", "error", err, "collected", len(articles))
	}

	merged := dedupe(articles)
	log.Info("articles merged", "fetched", len(articles), "unique", len(merged))

	upserted := 0
	if len(merged) > 0 {
		upserted, err = p.store.Upsert(ctx, merged)
		if err != nil {
			return domain.RunResult{}, fmt.Errorf("upsert articles: %w", err)
		}
	}

	yesterday, today := civil.Days(now, p.location)

	if err := p.store.RecomputePopularity(ctx, p.popularityWindow); err != nil {
		log.Warn("popularity recompute failed", "error", err)
	}

	for _, day := range []string{yesterday, today} {
		if err := p.store.BuildDailyDigest(ctx, day, p.perTopicLimit); err != nil {
			log.Warn("digest rebuild failed", "day", day, "error", err)
		}
	}

	if p.revalidator != nil {
		if err := p.revalidator.Revalidate(ctx); err != nil {
			log.Debug("revalidate failed", "error", err)
		}
	}

	result := domain.RunResult{
		Upserted: upserted,
		Days:     domain.DayPair{Yesterday: yesterday, Today: today},
	}
	log.Info("run done", "upserted", result.Upserted, "yesterday", yesterday, "today", today)
	return result, nil
}

// dedupe folds articles into a map keyed by id; a later occurrence fully
// overwrites an earlier one. Sources and categories run sequentially in
// declaration order, which makes the tie-break deterministic. Output order
// follows first occurrence of each id.
func dedupe(articles []domain.Article) []domain.Article {
	merged := make(map[string]domain.Article, len(articles))
	order := make([]string, 0, len(articles))

	for _, article := range articles {
		if _, seen := merged[article.ID]; !seen {
			order = append(order, article.ID)
		}
		merged[article.ID] = article
	}

	result := make([]domain.Article, 0, len(order))
	for _, id := range order {
		result = append(result, merged[id])
	}
	return result
}
