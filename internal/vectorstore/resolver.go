package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/embedding"
	applog "github.com/marketmatch/marketmatch/internal/logger"
)

// rebuildBatchSize is how many chunks are embedded and upserted per
// round during an index rebuild.
const rebuildBatchSize = 64

// ChunkSource lists the indexed chunks held in the relational store.
// It feeds local index rebuilds and full reindexing.
type ChunkSource interface {
	ListIndexEntries(ctx context.Context) ([]domain.IndexEntry, error)
}

// managedStore is a Store whose availability must be verified before
// use.
type managedStore interface {
	Store
	EnsureCollection(ctx context.Context) error
}

// Resolver selects and memoizes the vector store backend.
//
// Selection honors the configured backend type: "qdrant" is tried
// first when requested, and any failure to reach or verify it falls
// back to the local store. A managed failure latches; later
// resolutions go straight to local until an explicit Reset clears the
// latch and allows the managed backend to be retried.
type Resolver struct {
	mu         sync.Mutex
	cfg        config.VectorStoreConfig
	settings   *config.Settings
	embeddings *embedding.Resolver
	chunks     ChunkSource

	store         Store
	managedFailed bool

	// constructor hooks, replaceable in tests
	newLocal  func(path string, dimensions int) (*LocalStore, error)
	newQdrant func(cfg config.QdrantConfig, dimensions int) (managedStore, error)
}

// NewResolver creates a backend resolver. chunks may be nil, in which
// case local index rebuilds are skipped.
func NewResolver(cfg config.VectorStoreConfig, settings *config.Settings, embeddings *embedding.Resolver, chunks ChunkSource) *Resolver {
	return &Resolver{
		cfg:        cfg,
		settings:   settings,
		embeddings: embeddings,
		chunks:     chunks,
		newLocal:   NewLocalStore,
		newQdrant: func(qc config.QdrantConfig, dimensions int) (managedStore, error) {
			return NewQdrantStore(qc, dimensions)
		},
	}
}

// Store returns the memoized backend, resolving it on first use. The
// returned store is always usable: managed-backend failures degrade to
// the local store rather than erroring.
func (r *Resolver) Store(ctx context.Context) (Store, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		return r.store, nil
	}

	dimensions := r.embeddings.Provider().Dimensions()

	if r.settings.VectorStoreType() == config.BackendQdrant {
		if r.managedFailed {
			applog.Warn("Managed vector store previously failed, staying on local backend")
		} else if store, err := r.resolveQdrant(ctx, dimensions); err != nil {
			applog.Warn("Managed vector store unavailable, falling back to local backend: %v", err)
			r.managedFailed = true
		} else {
			r.store = store
			applog.Info("Vector store backend: qdrant (collection=%s)", r.cfg.Qdrant.Collection)
			return r.store, nil
		}
	}

	store, err := r.resolveLocal(ctx, dimensions)
	if err != nil {
		return nil, err
	}
	r.store = store
	applog.Info("Vector store backend: local (path=%s)", r.cfg.IndexPath)
	return r.store, nil
}

// resolveQdrant dials the managed backend and verifies the collection.
func (r *Resolver) resolveQdrant(ctx context.Context, dimensions int) (Store, error) {
	store, err := r.newQdrant(r.cfg.Qdrant, dimensions)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureCollection(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// resolveLocal opens the on-disk index, discarding and rebuilding it
// when corrupt, and rebuilds an empty index from the relational store.
func (r *Resolver) resolveLocal(ctx context.Context, dimensions int) (Store, error) {
	store, err := r.newLocal(r.cfg.IndexPath, dimensions)
	if errors.Is(err, ErrIndexCorrupt) {
		applog.Warn("Discarding corrupt vector index: %v", err)
		RemoveIndexFile(r.cfg.IndexPath)
		store, err = r.newLocal(r.cfg.IndexPath, dimensions)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open local vector store: %w", err)
	}

	stats, err := store.Stats(ctx)
	if err == nil && stats.Count == 0 && r.chunks != nil {
		if n, err := r.Rebuild(ctx, store); err != nil {
			applog.Warn("Local index rebuild failed: %v", err)
		} else if n > 0 {
			applog.Info("Rebuilt local vector index with %d chunks", n)
		}
	}
	return store, nil
}

// Rebuild re-embeds every chunk from the relational store into the
// given backend. Returns the number of chunks indexed.
func (r *Resolver) Rebuild(ctx context.Context, store Store) (int, error) {
	if r.chunks == nil {
		return 0, nil
	}

	entries, err := r.chunks.ListIndexEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks for rebuild: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	provider := r.embeddings.Provider()
	indexed := 0
	for start := 0; start < len(entries); start += rebuildBatchSize {
		end := start + rebuildBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, entry := range batch {
			texts[i] = entry.Content
		}
		vectors, err := provider.EmbedDocuments(ctx, texts)
		if err != nil {
			return indexed, fmt.Errorf("failed to embed chunks for rebuild: %w", err)
		}

		items := make([]Item, len(batch))
		for i, entry := range batch {
			items[i] = Item{
				ID:      entry.ChunkID,
				Vector:  vectors[i],
				Content: entry.Content,
				Metadata: domain.VectorMetadata{
					ChunkID:       entry.ChunkID,
					DocumentID:    entry.DocumentID,
					DocumentTitle: entry.DocumentTitle,
					ChunkIndex:    entry.ChunkIndex,
				},
			}
		}
		if err := store.Upsert(ctx, items); err != nil {
			return indexed, fmt.Errorf("failed to upsert chunks for rebuild: %w", err)
		}
		indexed += len(batch)
	}
	return indexed, nil
}

// ActiveKind reports the resolved backend kind, or empty when nothing
// has been resolved yet.
func (r *Resolver) ActiveKind() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.store == nil {
		return ""
	}
	return r.store.Kind()
}

// ManagedFailed reports whether the managed backend has been latched
// as failed.
func (r *Resolver) ManagedFailed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.managedFailed
}

// MarkManagedFailed latches the managed backend as failed and, if it
// is the active store, drops it so the next resolution lands on local.
func (r *Resolver) MarkManagedFailed() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.managedFailed = true
	if r.store != nil && r.store.Kind() == KindQdrant {
		if err := r.store.Close(); err != nil {
			applog.Warn("Failed to close managed vector store: %v", err)
		}
		r.store = nil
	}
}

// Reset drops the memoized store and clears the managed-failure latch
// so the next Store call resolves from scratch, retrying the managed
// backend if it is the configured type. Idempotent.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.store != nil {
		if err := r.store.Close(); err != nil {
			applog.Warn("Failed to close vector store: %v", err)
		}
		r.store = nil
	}
	r.managedFailed = false
}
