package usecase

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/juju/clock/testclock"

	"paperdigest/internal/config"
	"paperdigest/internal/domain"
	"paperdigest/internal/infrastructure/parser"
	"paperdigest/internal/scanner"
)

type fakeSource struct {
	articles []domain.Article
	err      error
}

func (f *fakeSource) FetchWindow(ctx context.Context, window time.Duration) ([]domain.Article, error) {
	return f.articles, f.err
}

type digestCall struct {
	day   string
	limit int
}

type fakeStore struct {
	upserted        []domain.Article
	upsertErr       error
	popularityCalls []time.Duration
	digestCalls     []digestCall
}

func (f *fakeStore) Upsert(ctx context.Context, articles []domain.Article) (int, error) {
	if f.upsertErr != nil {
		return 0, f.upsertErr
	}
	f.upserted = append(f.upserted, articles...)
	return len(articles), nil
}

func (f *fakeStore) RecomputePopularity(ctx context.Context, window time.Duration) error {
	f.popularityCalls = append(f.popularityCalls, window)
	return nil
}

func (f *fakeStore) BuildDailyDigest(ctx context.Context, day string, perTopicLimit int) error {
	f.digestCalls = append(f.digestCalls, digestCall{day: day, limit: perTopicLimit})
	return nil
}

func toronto(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestPipelineRunDeduplicatesLastWriteWins(t *testing.T) {
	t.Parallel()

	source := &fakeSource{articles: []domain.Article{
		{ID: "2501.00001", Title: "From cs.CV", Source: "arxiv"},
		{ID: "2501.00002", Title: "Unique", Source: "arxiv"},
		{ID: "2501.00001", Title: "From cs.LG", Source: "arxiv"},
	}}
	store := &fakeStore{}

	p := NewPipeline(PipelineDeps{
		Source:           source,
		Store:            store,
		Location:         toronto(t),
		FetchWindow:      24 * time.Hour,
		PopularityWindow: 48 * time.Hour,
		PerTopicLimit:    6,
	})

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	result, err := p.Run(context.Background(), now, "test")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if result.Upserted != 2 {
		t.Fatalf("expected 2 upserted, got %d", result.Upserted)
	}
	if len(store.upserted) != 2 {
		t.Fatalf("expected 2 records in store, got %d", len(store.upserted))
	}
	if store.upserted[0].ID != "2501.00001" || store.upserted[0].Title != "From cs.LG" {
		t.Fatalf("later occurrence must win: %+v", store.upserted[0])
	}
	if result.Days.Yesterday != "2025-11-07" || result.Days.Today != "2025-11-08" {
		t.Fatalf("unexpected days: %+v", result.Days)
	}
}

func TestPipelineUpsertFailureIsTerminal(t *testing.T) {
	t.Parallel()

	source := &fakeSource{articles: []domain.Article{{ID: "2501.00001"}}}
	store := &fakeStore{upsertErr: fmt.Errorf("chunk 2 of 3 failed")}

	p := NewPipeline(PipelineDeps{
		Source:           source,
		Store:            store,
		Location:         toronto(t),
		FetchWindow:      24 * time.Hour,
		PopularityWindow: 48 * time.Hour,
		PerTopicLimit:    6,
	})

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	if _, err := p.Run(context.Background(), now, ""); err == nil {
		t.Fatal("expected a run-level failure")
	}

	if len(store.popularityCalls) != 0 {
		t.Fatal("popularity must not be recomputed after a failed upsert")
	}
	if len(store.digestCalls) != 0 {
		t.Fatal("digests must not be rebuilt after a failed upsert")
	}
}

func TestPipelineSourceFailureIsRecovered(t *testing.T) {
	t.Parallel()

	source := &fakeSource{
		articles: []domain.Article{{ID: "2501.00001"}},
		err:      fmt.Errorf("one site down"),
	}
	store := &fakeStore{}

	p := NewPipeline(PipelineDeps{
		Source:           source,
		Store:            store,
		Location:         toronto(t),
		FetchWindow:      24 * time.Hour,
		PopularityWindow: 48 * time.Hour,
		PerTopicLimit:    6,
	})

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	result, err := p.Run(context.Background(), now, "")
	if err != nil {
		t.Fatalf("partial fetch failure must not fail the run: %v", err)
	}
	if result.Upserted != 1 {
		t.Fatalf("expected 1 upserted, got %d", result.Upserted)
	}
}

func TestPipelineIdempotentRerun(t *testing.T) {
	t.Parallel()

	source := &fakeSource{articles: []domain.Article{
		{ID: "2501.00001", Title: "Same"},
	}}
	store := &fakeStore{}

	p := NewPipeline(PipelineDeps{
		Source:           source,
		Store:            store,
		Location:         toronto(t),
		FetchWindow:      24 * time.Hour,
		PopularityWindow: 48 * time.Hour,
		PerTopicLimit:    6,
	})

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if _, err := p.Run(context.Background(), now, ""); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}

	// Both passes upsert the same id; row identity stays unique.
	ids := map[string]int{}
	for _, article := range store.upserted {
		ids[article.ID]++
	}
	if len(ids) != 1 || ids["2501.00001"] != 2 {
		t.Fatalf("expected the same id written twice, got %v", ids)
	}
}

// End-to-end: one arXiv category, a two-page mocked feed with two fresh and
// one stale entry, real scanner and strategy source, fake store.
func TestPipelineEndToEnd(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.November, 8, 12, 0, 0, 0, time.UTC)
	clk := testclock.NewClock(now)

	page := func(entries string) string {
		return `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>ArXiv Query Results</title>` + entries + `</feed>`
	}
	entry := func(id string, published time.Time) string {
		return fmt.Sprintf(`<entry><id>http://arxiv.org/abs/%s</id><title>T %s</title>
<summary>abstract</summary><published>%s</published>
<author><name>A</name></author><category term="cs.CV"/></entry>`,
			id, id, published.Format(time.RFC3339))
	}

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		switch r.URL.Query().Get("start") {
		case "0":
			_, _ = w.Write([]byte(page(
				entry("2511.00001v1", now.Add(-2*time.Hour)) +
					entry("2511.00002v1", now.Add(-20*time.Hour)))))
		default:
			_, _ = w.Write([]byte(page(entry("2510.00003v1", now.Add(-30*time.Hour)))))
		}
	}))
	defer server.Close()

	registry := scanner.NewRegistry()
	registry.Register(parser.NewArxivScanner(server.Client(), clk, parser.ArxivOptions{PageSize: 2}, nil))

	sites := []config.SiteConfig{
		{Name: "arxiv", Scanner: "arxiv", Categories: []config.CategoryConfig{{Name: "cs.CV", URL: server.URL}}},
	}
	source := parser.NewStrategySource(registry, sites, nil)
	store := &fakeStore{}

	p := NewPipeline(PipelineDeps{
		Source:           source,
		Store:            store,
		Location:         toronto(t),
		FetchWindow:      24 * time.Hour,
		PopularityWindow: 48 * time.Hour,
		PerTopicLimit:    6,
	})

	result, err := p.Run(context.Background(), now, "manual")
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if got := requests.Load(); got != 2 {
		t.Fatalf("expected exactly 2 page requests, got %d", got)
	}
	if result.Upserted != 2 {
		t.Fatalf("expected 2 upserted, got %d", result.Upserted)
	}
	if result.Days.Yesterday != "2025-11-07" || result.Days.Today != "2025-11-08" {
		t.Fatalf("unexpected days: %+v", result.Days)
	}

	if len(store.popularityCalls) != 1 || store.popularityCalls[0] != 48*time.Hour {
		t.Fatalf("unexpected popularity calls: %v", store.popularityCalls)
	}
	want := []digestCall{
		{day: "2025-11-07", limit: 6},
		{day: "2025-11-08", limit: 6},
	}
	if len(store.digestCalls) != 2 || store.digestCalls[0] != want[0] || store.digestCalls[1] != want[1] {
		t.Fatalf("unexpected digest calls: %v", store.digestCalls)
	}
}

func TestDedupeTieBreak(t *testing.T) {
	t.Parallel()

	merged := dedupe([]domain.Article{
		{ID: "x", Title: "first"},
		{ID: "y", Title: "only"},
		{ID: "x", Title: "second"},
	})

	if len(merged) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(merged))
	}
	if merged[0].ID != "x" || merged[0].Title != "second" {
		t.Fatalf("tie-break must favor the later occurrence: %+v", merged[0])
	}
	if merged[1].ID != "y" {
		t.Fatalf("first-seen order not preserved: %+v", merged)
	}
}
