package service

import (
	"context"
	"fmt"

	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/logger"
)

// AdminService exposes lifecycle and status operations: inspecting the
// resolved backends, switching the requested backend, resetting the
// memoized resolvers, and full reindexing.
type AdminService struct {
	settings   *config.Settings
	backend    BackendResolver
	embeddings EmbeddingSource
	docs       DocumentStore
	logger     *logger.Logger
}

// NewAdminService creates the admin service.
func NewAdminService(
	settings *config.Settings,
	backend BackendResolver,
	embeddings EmbeddingSource,
	docs DocumentStore,
	log *logger.Logger,
) *AdminService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &AdminService{
		settings:   settings,
		backend:    backend,
		embeddings: embeddings,
		docs:       docs,
		logger:     log,
	}
}

// SystemStatus reports the resolved state of the pipeline.
type SystemStatus struct {
	RequestedBackend  string `json:"requested_backend"`
	ActiveBackend     string `json:"active_backend"`
	ManagedFailed     bool   `json:"managed_failed"`
	EmbeddingProvider string `json:"embedding_provider"`
	Dimensions        int    `json:"dimensions"`
	VectorCount       int64  `json:"vector_count"`
	DocumentCount     int    `json:"document_count"`
	ChunkCount        int64  `json:"chunk_count"`
}

// Status resolves the backend if needed and reports the system state.
func (s *AdminService) Status(ctx context.Context) (*SystemStatus, error) {
	store, err := s.backend.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve vector store: %w", err)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read vector store stats: %w", err)
	}

	provider := s.embeddings.Provider()
	status := &SystemStatus{
		RequestedBackend:  s.settings.VectorStoreType(),
		ActiveBackend:     store.Kind(),
		ManagedFailed:     s.backend.ManagedFailed(),
		EmbeddingProvider: provider.Name(),
		Dimensions:        provider.Dimensions(),
		VectorCount:       stats.Count,
	}

	if s.docs != nil {
		if docs, err := s.docs.ListDocuments(ctx); err == nil {
			status.DocumentCount = len(docs)
		}
		if count, err := s.docs.CountChunks(ctx); err == nil {
			status.ChunkCount = count
		}
	}
	return status, nil
}

// Reset wipes the active vector index and drops the memoized vector
// store and embedding provider so the next use resolves both again.
// The index wipe is best-effort; the resolver reset always happens.
// Idempotent.
func (s *AdminService) Reset(ctx context.Context) {
	if store, err := s.backend.Store(ctx); err == nil {
		if err := store.DeleteAll(ctx); err != nil {
			logger.CtxWarn(ctx, "Failed to wipe vector store during reset: %v", err)
		}
	}
	s.backend.Reset()
	s.embeddings.Reset()
	logger.CtxInfo(ctx, "Pipeline resolvers reset")
}

// SetBackend changes the requested backend type and resets the
// resolver so the change takes effect on next use.
func (s *AdminService) SetBackend(ctx context.Context, backendType string) error {
	if err := s.settings.Set(config.KeyVectorStoreType, backendType); err != nil {
		return err
	}
	s.backend.Reset()
	logger.CtxInfo(ctx, "Vector store backend set to %s", backendType)
	return nil
}

// Reindex clears the active vector store and re-embeds every chunk
// from the relational store. Returns the number of chunks indexed.
func (s *AdminService) Reindex(ctx context.Context) (int, error) {
	store, err := s.backend.Store(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve vector store: %w", err)
	}
	if err := store.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear vector store: %w", err)
	}
	n, err := s.backend.Rebuild(ctx, store)
	if err != nil {
		return n, err
	}
	logger.CtxInfo(ctx, "Reindexed %d chunks into %s backend", n, store.Kind())
	return n, nil
}
