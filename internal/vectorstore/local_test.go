package vectorstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/marketmatch/marketmatch/internal/domain"
)

func newTestStore(t *testing.T) (*LocalStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "index.json")
	store, err := NewLocalStore(path, 3)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	return store, path
}

func testItem(id string, vector []float32, content string) Item {
	return Item{
		ID:      id,
		Vector:  vector,
		Content: content,
		Metadata: domain.VectorMetadata{
			ChunkID:    id,
			DocumentID: "doc-1",
			ChunkIndex: 0,
		},
	}
}

func TestLocalStoreEmptySearchHidesPlaceholder(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	matches, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches from empty store, got %d", len(matches))
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Count != 0 {
		t.Errorf("Expected count 0 excluding placeholder, got %d", stats.Count)
	}
}

func TestLocalStoreSearchOrdering(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []Item{
		testItem("a", []float32{1, 0, 0}, "exact match"),
		testItem("b", []float32{0.7, 0.7, 0}, "partial match"),
		testItem("c", []float32{0, 0, 1}, "orthogonal"),
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	matches, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Content != "exact match" {
		t.Errorf("Expected best match first, got %q", matches[0].Content)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("Matches not ordered by descending score: %f < %f", matches[0].Score, matches[1].Score)
	}
	if matches[0].Metadata.ChunkID != "a" {
		t.Errorf("Metadata lost in search: %+v", matches[0].Metadata)
	}
}

func TestLocalStoreDimensionMismatch(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	err := store.Upsert(ctx, []Item{testItem("a", []float32{1, 0}, "short vector")})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch from Upsert, got %v", err)
	}

	_, err = store.SimilaritySearch(ctx, []float32{1, 0, 0, 0}, 5)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Expected ErrDimensionMismatch from SimilaritySearch, got %v", err)
	}
}

func TestLocalStorePersistenceRoundtrip(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Item{
		testItem("a", []float32{1, 0, 0}, "persisted chunk"),
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	reopened, err := NewLocalStore(path, 3)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}

	matches, err := reopened.SimilaritySearch(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Content != "persisted chunk" {
		t.Errorf("Persisted entry not recovered: %+v", matches)
	}
}

func TestLocalStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.json")
	if err := os.WriteFile(path, []byte("not json at all"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := NewLocalStore(path, 3)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("Expected ErrIndexCorrupt, got %v", err)
	}
}

func TestLocalStoreDimensionChangeIsCorrupt(t *testing.T) {
	store, path := newTestStore(t)
	if err := store.Upsert(context.Background(), []Item{
		testItem("a", []float32{1, 0, 0}, "chunk"),
	}); err != nil {
		t.Fatal(err)
	}

	_, err := NewLocalStore(path, 8)
	if !errors.Is(err, ErrIndexCorrupt) {
		t.Errorf("Expected ErrIndexCorrupt on dimension change, got %v", err)
	}
}

func TestLocalStoreDeleteAll(t *testing.T) {
	store, path := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Item{
		testItem("a", []float32{1, 0, 0}, "chunk a"),
		testItem("b", []float32{0, 1, 0}, "chunk b"),
	}); err != nil {
		t.Fatal(err)
	}

	if err := store.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Count != 0 {
		t.Errorf("Expected empty store after DeleteAll, got %d", stats.Count)
	}
	matches, err := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("SimilaritySearch failed: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Expected no matches after DeleteAll, got %d", len(matches))
	}

	// The cleared state survives a reopen.
	reopened, err := NewLocalStore(path, 3)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	stats, _ = reopened.Stats(ctx)
	if stats.Count != 0 {
		t.Errorf("DeleteAll not persisted, got count %d", stats.Count)
	}
}

func TestLocalStoreUpsertReplaces(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Upsert(ctx, []Item{testItem("a", []float32{1, 0, 0}, "old")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(ctx, []Item{testItem("a", []float32{1, 0, 0}, "new")}); err != nil {
		t.Fatal(err)
	}

	stats, _ := store.Stats(ctx)
	if stats.Count != 1 {
		t.Errorf("Expected 1 entry after replacing upsert, got %d", stats.Count)
	}
	matches, _ := store.SimilaritySearch(ctx, []float32{1, 0, 0}, 1)
	if len(matches) != 1 || matches[0].Content != "new" {
		t.Errorf("Upsert did not replace entry: %+v", matches)
	}
}
