package vectorstore

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/embedding"
)

type staticChunkSource struct {
	entries []domain.IndexEntry
}

func (s *staticChunkSource) ListIndexEntries(_ context.Context) ([]domain.IndexEntry, error) {
	return s.entries, nil
}

func newTestResolver(t *testing.T, backendType string, chunks ChunkSource) *Resolver {
	t.Helper()
	cfg := config.VectorStoreConfig{
		Type:      backendType,
		IndexPath: filepath.Join(t.TempDir(), "index.json"),
		Qdrant: config.QdrantConfig{
			Host:       "localhost",
			Port:       6334,
			Collection: "marketmatch-test",
		},
	}
	settings := config.NewSettings(&config.Config{
		VectorStore: config.VectorStoreConfig{Type: backendType},
	})
	embeddings := embedding.NewResolver(config.EmbeddingConfig{Dimensions: 8})
	return NewResolver(cfg, settings, embeddings, chunks)
}

func TestResolverLocalByDefault(t *testing.T) {
	r := newTestResolver(t, config.BackendLocal, nil)

	store, err := r.Store(context.Background())
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if store.Kind() != KindLocal {
		t.Errorf("Expected local backend, got %s", store.Kind())
	}
	if r.ActiveKind() != KindLocal {
		t.Errorf("ActiveKind mismatch: %s", r.ActiveKind())
	}
}

func TestResolverManagedFailureFallsBackToLocal(t *testing.T) {
	r := newTestResolver(t, config.BackendQdrant, nil)

	dialAttempts := 0
	r.newQdrant = func(_ config.QdrantConfig, _ int) (managedStore, error) {
		dialAttempts++
		return nil, fmt.Errorf("%w: dial refused", ErrBackendUnavailable)
	}

	store, err := r.Store(context.Background())
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if store.Kind() != KindLocal {
		t.Errorf("Expected fallback to local, got %s", store.Kind())
	}
	if !r.ManagedFailed() {
		t.Error("Managed failure not latched")
	}
	if dialAttempts != 1 {
		t.Errorf("Expected 1 dial attempt, got %d", dialAttempts)
	}

	// While latched, later resolutions skip the managed backend.
	r.store = nil
	store, err = r.Store(context.Background())
	if err != nil {
		t.Fatalf("Store after drop failed: %v", err)
	}
	if store.Kind() != KindLocal {
		t.Errorf("Expected local while latched, got %s", store.Kind())
	}
	if dialAttempts != 1 {
		t.Errorf("Managed backend retried while latched, dial attempts %d", dialAttempts)
	}

	// An explicit reset clears the latch and retries the managed
	// backend.
	r.Reset()
	if r.ManagedFailed() {
		t.Error("Latch survived reset")
	}
	store, err = r.Store(context.Background())
	if err != nil {
		t.Fatalf("Store after reset failed: %v", err)
	}
	if store.Kind() != KindLocal {
		t.Errorf("Expected local after failed retry, got %s", store.Kind())
	}
	if dialAttempts != 2 {
		t.Errorf("Expected managed retry after reset, dial attempts %d", dialAttempts)
	}
}

func TestResolverMemoizesStore(t *testing.T) {
	r := newTestResolver(t, config.BackendLocal, nil)
	ctx := context.Background()

	first, err := r.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("Store not memoized across calls")
	}
}

func TestResolverResetIdempotent(t *testing.T) {
	r := newTestResolver(t, config.BackendLocal, nil)
	ctx := context.Background()

	if _, err := r.Store(ctx); err != nil {
		t.Fatal(err)
	}

	r.Reset()
	r.Reset() // second reset with nothing memoized

	if r.ActiveKind() != "" {
		t.Errorf("Expected unresolved state after reset, got %q", r.ActiveKind())
	}
	store, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store after double reset failed: %v", err)
	}
	if store.Kind() != KindLocal {
		t.Errorf("Unexpected backend after reset: %s", store.Kind())
	}
}

func TestResolverRebuildsEmptyLocalIndex(t *testing.T) {
	chunks := &staticChunkSource{entries: []domain.IndexEntry{
		{ChunkID: "11111111-1111-1111-1111-111111111111", DocumentID: "doc-1", DocumentTitle: "Energy Report", ChunkIndex: 0, Content: "Solar capacity doubled last year."},
		{ChunkID: "22222222-2222-2222-2222-222222222222", DocumentID: "doc-1", DocumentTitle: "Energy Report", ChunkIndex: 1, Content: "Wind output grew steadily."},
	}}
	r := newTestResolver(t, config.BackendLocal, chunks)
	ctx := context.Background()

	store, err := r.Store(ctx)
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 2 {
		t.Errorf("Expected 2 rebuilt entries, got %d", stats.Count)
	}

	// Rebuilt entries are searchable with the same deterministic
	// embeddings used to index them.
	provider := embedding.NewDeterministicProvider(8)
	vector, _ := provider.EmbedQuery(ctx, "Solar capacity doubled last year.")
	matches, err := store.SimilaritySearch(ctx, vector, 1)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Metadata.ChunkID != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("Rebuilt entry not found: %+v", matches)
	}
}

func TestResolverReindexAfterDeleteAll(t *testing.T) {
	chunks := &staticChunkSource{entries: []domain.IndexEntry{
		{ChunkID: "33333333-3333-3333-3333-333333333333", DocumentID: "doc-2", DocumentTitle: "Markets", ChunkIndex: 0, Content: "EV demand keeps rising."},
	}}
	r := newTestResolver(t, config.BackendLocal, chunks)
	ctx := context.Background()

	store, err := r.Store(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteAll(ctx); err != nil {
		t.Fatal(err)
	}

	n, err := r.Rebuild(ctx, store)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 reindexed chunk, got %d", n)
	}
	stats, _ := store.Stats(ctx)
	if stats.Count != 1 {
		t.Errorf("Expected 1 entry after reindex, got %d", stats.Count)
	}
}
