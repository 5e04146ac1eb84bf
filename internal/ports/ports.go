package ports

import (
	"context"
	"time"

	"paperdigest/internal/domain"
)

// ArticleSource pulls fresh articles published within the trailing window.
type ArticleSource interface {
	FetchWindow(ctx context.Context, window time.Duration) ([]domain.Article, error)
}

// ArticleStore persists articles and drives store-side recomputations.
type ArticleStore interface {
	// Upsert writes the records keyed by id, overwriting conflicting rows,
	// and returns the number of rows written.
	Upsert(ctx context.Context, articles []domain.Article) (int, error)

	// RecomputePopularity refreshes ranking scores from interactions
	// within the trailing window.
	RecomputePopularity(ctx context.Context, window time.Duration) error

	// BuildDailyDigest rebuilds the per-topic shortlist for one civil day.
	BuildDailyDigest(ctx context.Context, day string, perTopicLimit int) error
}

// Revalidator pokes a downstream cache after new content lands.
type Revalidator interface {
	Revalidate(ctx context.Context) error
}

// Scheduler controls when pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
