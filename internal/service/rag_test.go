package service

import (
	"context"
	"strings"
	"testing"

	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/prompts"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

func renewableMatch(score float32) domain.Match {
	return domain.Match{
		Content: "The renewable energy market grew 20% last year, driven by solar and wind installations across emerging economies.",
		Metadata: domain.VectorMetadata{
			ChunkID:       "chunk-1",
			DocumentID:    "doc-1",
			DocumentTitle: "Energy Outlook",
			ChunkIndex:    0,
		},
		Score: score,
	}
}

func TestQueryEmptyQuestion(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{kind: vectorstore.KindLocal}}
	queries := &fakeQueryStore{}
	svc := NewRAGService(queries, backend, testEmbeddings(), nil, 5, nil)

	for _, question := range []string{"", "   ", "\n\t"} {
		result := svc.Query(context.Background(), question)
		if result.Answer != prompts.EmptyQuestionAnswer {
			t.Errorf("Expected fixed empty-question answer for %q, got %q", question, result.Answer)
		}
		if len(result.Sources) != 0 {
			t.Errorf("Expected no sources, got %d", len(result.Sources))
		}
	}

	if backend.storeCalls != 0 {
		t.Errorf("Empty questions must not touch the backend, got %d calls", backend.storeCalls)
	}
	if len(queries.queries) != 0 {
		t.Errorf("Empty questions must not be persisted, got %d", len(queries.queries))
	}
}

func TestQueryNoMatches(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{kind: vectorstore.KindLocal}}
	queries := &fakeQueryStore{}
	svc := NewRAGService(queries, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if result.Answer != prompts.NoContextAnswer {
		t.Errorf("Expected fixed no-context answer, got %q", result.Answer)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Expected no sources, got %d", len(result.Sources))
	}

	if len(queries.queries) != 1 || len(queries.responses) != 1 {
		t.Fatalf("Expected query and response persisted, got %d/%d", len(queries.queries), len(queries.responses))
	}
	if queries.queries[0].Content != "What markets are growing?" {
		t.Errorf("Persisted question mismatch: %q", queries.queries[0].Content)
	}
	if len(queries.sources) != 0 {
		t.Errorf("Expected no source attributions, got %d", len(queries.sources))
	}
}

func TestQueryDegradedWithoutGenerator(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{
		kind:    vectorstore.KindLocal,
		matches: []domain.Match{renewableMatch(0.92)},
	}}
	queries := &fakeQueryStore{}
	svc := NewRAGService(queries, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if !result.Degraded {
		t.Error("Expected degraded result without a generator")
	}
	if !strings.HasPrefix(result.Answer, prompts.DegradedAnswerPrefix) {
		t.Errorf("Degraded answer missing prefix: %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "Energy Outlook") {
		t.Errorf("Degraded answer missing document title: %q", result.Answer)
	}
	if !strings.Contains(result.Answer, "renewable energy market") {
		t.Errorf("Degraded answer missing excerpt: %q", result.Answer)
	}
	if len(result.Sources) != 1 {
		t.Fatalf("Expected 1 source, got %d", len(result.Sources))
	}
	if result.Metadata.DocumentCount != 1 {
		t.Errorf("Expected 1 source document, got %d", result.Metadata.DocumentCount)
	}
	if result.Metadata.Timestamp.IsZero() {
		t.Error("Result metadata missing timestamp")
	}

	if len(queries.sources) != 1 {
		t.Fatalf("Expected 1 source attribution persisted, got %d", len(queries.sources))
	}
	if queries.sources[0].ChunkID != "chunk-1" || queries.sources[0].RelevanceScore != 0.92 {
		t.Errorf("Source attribution mismatch: %+v", queries.sources[0])
	}
}

func TestQueryDegradedExcerptTruncated(t *testing.T) {
	long := strings.Repeat("market analysis ", 30) // well past the excerpt cap
	backend := &fakeBackend{primary: &fakeStore{
		kind: vectorstore.KindLocal,
		matches: []domain.Match{{
			Content:  long,
			Metadata: domain.VectorMetadata{ChunkID: "chunk-long", DocumentTitle: "Long Report"},
			Score:    0.5,
		}},
	}}
	svc := NewRAGService(&fakeQueryStore{}, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if !strings.Contains(result.Answer, long[:degradedExcerptLen]+"...") {
		t.Error("Expected truncated excerpt with ellipsis")
	}
	if strings.Contains(result.Answer, long) {
		t.Error("Full chunk content leaked into degraded answer")
	}
}

func TestQueryFatalSearchErrorSurfaced(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{
		kind:      vectorstore.KindLocal,
		searchErr: vectorstore.ErrDimensionMismatch,
	}}
	queries := &fakeQueryStore{}
	svc := NewRAGService(queries, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if result.Answer != prompts.NoContextAnswer {
		t.Errorf("Expected no-context answer, got %q", result.Answer)
	}
	if !strings.Contains(result.Metadata.Error, "dimension mismatch") {
		t.Errorf("Search error not surfaced in result metadata: %q", result.Metadata.Error)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Expected no sources, got %d", len(result.Sources))
	}
}

func TestQueryGeneratedAnswer(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{
		kind:    vectorstore.KindLocal,
		matches: []domain.Match{renewableMatch(0.9)},
	}}
	generator := &fakeGenerator{answer: "Renewable energy markets are growing fastest."}
	queries := &fakeQueryStore{}
	svc := NewRAGService(queries, backend, testEmbeddings(), generator, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if result.Degraded {
		t.Error("Expected non-degraded result with a working generator")
	}
	if result.Answer != "Renewable energy markets are growing fastest." {
		t.Errorf("Unexpected answer: %q", result.Answer)
	}
	if generator.calls != 1 {
		t.Errorf("Expected 1 generator call, got %d", generator.calls)
	}
	if len(queries.responses) != 1 || queries.responses[0].Content != result.Answer {
		t.Error("Generated answer not persisted")
	}
}

func TestQueryGeneratorFailureDegrades(t *testing.T) {
	backend := &fakeBackend{primary: &fakeStore{
		kind:    vectorstore.KindLocal,
		matches: []domain.Match{renewableMatch(0.9)},
	}}
	generator := &fakeGenerator{err: context.DeadlineExceeded}
	svc := NewRAGService(&fakeQueryStore{}, backend, testEmbeddings(), generator, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if !result.Degraded {
		t.Error("Expected degraded result when generation fails")
	}
	if !strings.HasPrefix(result.Answer, prompts.DegradedAnswerPrefix) {
		t.Errorf("Expected context listing, got %q", result.Answer)
	}
}

func TestQueryManagedFailureFallsBackMidQuery(t *testing.T) {
	primary := &fakeStore{
		kind:      vectorstore.KindQdrant,
		searchErr: vectorstore.ErrBackendUnavailable,
	}
	fallback := &fakeStore{
		kind:    vectorstore.KindLocal,
		matches: []domain.Match{renewableMatch(0.8)},
	}
	backend := &fakeBackend{primary: primary, fallback: fallback}
	svc := NewRAGService(&fakeQueryStore{}, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if !backend.managedFailed {
		t.Error("Managed failure not latched")
	}
	if result.Backend != vectorstore.KindLocal {
		t.Errorf("Expected local backend after fallback, got %q", result.Backend)
	}
	if len(result.Sources) != 1 {
		t.Errorf("Expected fallback search results, got %d sources", len(result.Sources))
	}
}

func TestQueryResultAlwaysWellFormed(t *testing.T) {
	// A backend that cannot even resolve a store still yields an answer.
	backend := &fakeBackend{}
	svc := NewRAGService(&fakeQueryStore{}, backend, testEmbeddings(), nil, 5, nil)

	result := svc.Query(context.Background(), "What markets are growing?")
	if result == nil {
		t.Fatal("Expected a result, got nil")
	}
	if result.Answer != prompts.NoContextAnswer {
		t.Errorf("Expected no-context answer, got %q", result.Answer)
	}
	if result.Sources == nil {
		t.Error("Sources must never be nil")
	}
	if result.Metadata.Timestamp.IsZero() {
		t.Error("Result metadata missing timestamp")
	}
}

func TestHistoryLimit(t *testing.T) {
	queries := &fakeQueryStore{queries: []domain.Query{
		{ID: "1", Content: "a"},
		{ID: "2", Content: "b"},
		{ID: "3", Content: "c"},
	}}
	svc := NewRAGService(queries, &fakeBackend{primary: &fakeStore{kind: vectorstore.KindLocal}}, testEmbeddings(), nil, 5, nil)

	got, err := svc.History(context.Background(), 2)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Expected 2 queries, got %d", len(got))
	}
}
