package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"paperdigest/internal/domain"
	"paperdigest/internal/ports"
)

// upsertChunkSize bounds one statement's row count to respect payload limits.
const upsertChunkSize = 200

// PostgresStore persists articles and invokes store-owned recomputations.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.ArticleStore = (*PostgresStore)(nil)

// NewPostgresStore wires a sql.DB implementation.
func NewPostgresStore(db *sql.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// Upsert writes articles in bounded chunks, conflict-resolved by id. Each
// chunk is one statement and commits atomically; a failing chunk aborts the
// remaining ones while earlier chunks stay committed.
func (s *PostgresStore) Upsert(ctx context.Context, articles []domain.Article) (int, error) {
	if s.db == nil || len(articles) == 0 {
		return 0, nil
	}

	total := 0
	for start := 0; start < len(articles); start += upsertChunkSize {
		end := start + upsertChunkSize
		if end > len(articles) {
			end = len(articles)
		}

		if err := s.upsertChunk(ctx, articles[start:end]); err != nil {
			return total, fmt.Errorf("upsert chunk at %d: %w", start, err)
		}
		total += end - start
	}

	if s.logger != nil {
		s.logger.Debug("articles upserted", "count", total)
	}
	return total, nil
}

func (s *PostgresStore) upsertChunk(ctx context.Context, chunk []domain.Article) error {
	query, args, err := buildUpsert(chunk)
	if err != nil {
		return fmt.Errorf("build upsert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec upsert: %w", err)
	}

	return nil
}

func buildUpsert(chunk []domain.Article) (string, []interface{}, error) {
	builder := sq.Insert("articles").
		Columns("id", "title", "abstract", "authors", "categories", "topic",
			"link_abs", "published_at", "source", "image_url").
		PlaceholderFormat(sq.Dollar)

	for _, article := range chunk {
		builder = builder.Values(
			article.ID,
			article.Title,
			article.Abstract,
			pq.Array(article.Authors),
			pq.Array(article.Categories),
			article.Topic,
			article.LinkAbs,
			article.PublishedAt,
			article.Source,
			article.ImageURL,
		)
	}

	builder = builder.Suffix(`ON CONFLICT (id) DO UPDATE SET
        title = EXCLUDED.title,
        abstract = EXCLUDED.abstract,
        authors = EXCLUDED.authors,
        categories = EXCLUDED.categories,
        topic = EXCLUDED.topic,
        link_abs = EXCLUDED.link_abs,
        published_at = EXCLUDED.published_at,
        source = EXCLUDED.source,
        image_url = EXCLUDED.image_url,
        updated_at = NOW()`)

	return builder.ToSql()
}

// RecomputePopularity refreshes ranking scores over the trailing window.
func (s *PostgresStore) RecomputePopularity(ctx context.Context, window time.Duration) error {
	if s.db == nil {
		return nil
	}

	hours := int(window / time.Hour)
	if _, err := s.db.ExecContext(ctx, `SELECT recompute_popularity($1)`, hours); err != nil {
		return fmt.Errorf("recompute popularity: %w", err)
	}

	return nil
}

// BuildDailyDigest rebuilds the ranked per-topic shortlist for one civil day.
func (s *PostgresStore) BuildDailyDigest(ctx context.Context, day string, perTopicLimit int) error {
	if s.db == nil {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `SELECT build_daily_digest($1, $2)`, day, perTopicLimit); err != nil {
		return fmt.Errorf("build daily digest for %s: %w", day, err)
	}

	return nil
}
