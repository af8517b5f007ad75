package vectorstore

import (
	"context"
	"errors"

	"github.com/marketmatch/marketmatch/internal/domain"
)

// Backend kinds reported by Kind and accepted in configuration.
const (
	KindLocal  = "local"
	KindQdrant = "qdrant"
)

// Placeholder point identity. Empty collections hold exactly one
// placeholder vector so the backend always has something to search;
// every read path filters it out before returning results.
const (
	PlaceholderPointID = "00000000-0000-0000-0000-000000000000"
	PlaceholderChunkID = "placeholder"
	placeholderContent = "placeholder"
)

var (
	// ErrBackendUnavailable reports that the managed backend could not
	// be reached or verified.
	ErrBackendUnavailable = errors.New("vector store backend unavailable")
	// ErrDimensionMismatch reports a vector whose length differs from
	// the store's configured dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
	// ErrIndexCorrupt reports an on-disk index that could not be read.
	ErrIndexCorrupt = errors.New("vector index corrupt")
)

// Item is one vector with its payload, ready for indexing.
type Item struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata domain.VectorMetadata
}

// Stats summarizes the state of a store. Count excludes the
// placeholder vector.
type Stats struct {
	Kind       string `json:"backend"`
	Count      int64  `json:"vector_count"`
	Dimensions int    `json:"dimensions"`
}

// Store is a vector index backend. Implementations are safe for
// concurrent use.
type Store interface {
	// Kind identifies the backend ("local" or "qdrant").
	Kind() string
	// Upsert inserts or replaces the given items.
	Upsert(ctx context.Context, items []Item) error
	// SimilaritySearch returns up to k matches for the query vector,
	// best first. The placeholder vector is never returned.
	SimilaritySearch(ctx context.Context, vector []float32, k int) ([]domain.Match, error)
	// DeleteAll removes every vector and re-seeds the placeholder.
	DeleteAll(ctx context.Context) error
	// Stats reports the current backend state.
	Stats(ctx context.Context) (Stats, error)
	// Close releases backend resources.
	Close() error
}

// placeholderItem builds the placeholder entry for the given dimension.
func placeholderItem(dimensions int) Item {
	vector := make([]float32, dimensions)
	vector[0] = 1 // non-zero so cosine distance stays defined
	return Item{
		ID:      PlaceholderPointID,
		Vector:  vector,
		Content: placeholderContent,
		Metadata: domain.VectorMetadata{
			ChunkID: PlaceholderChunkID,
		},
	}
}
