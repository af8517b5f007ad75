package service

import (
	"context"

	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/embedding"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

// DocumentStore is the relational persistence the ingestion pipeline
// depends on.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context) ([]domain.Document, error)
	MarkDocumentProcessed(ctx context.Context, id string) error
	DeleteDocument(ctx context.Context, id string) error
	CreateChunk(ctx context.Context, chunk *domain.DocumentChunk) error
	UpdateChunk(ctx context.Context, chunk *domain.DocumentChunk) error
	ListChunksByDocument(ctx context.Context, documentID string) ([]domain.DocumentChunk, error)
	CountChunks(ctx context.Context) (int64, error)
}

// QueryStore records queries, responses, and source attributions.
type QueryStore interface {
	CreateQuery(ctx context.Context, q *domain.Query) error
	CreateResponse(ctx context.Context, resp *domain.Response) error
	AddSources(ctx context.Context, sources []domain.SourceAttribution) error
	ListRecentQueries(ctx context.Context, limit int) ([]domain.Query, error)
}

// BackendResolver hands out the active vector store backend and
// manages backend lifecycle.
type BackendResolver interface {
	Store(ctx context.Context) (vectorstore.Store, error)
	Rebuild(ctx context.Context, store vectorstore.Store) (int, error)
	MarkManagedFailed()
	ManagedFailed() bool
	ActiveKind() string
	Reset()
}

// EmbeddingSource hands out the active embedding provider.
type EmbeddingSource interface {
	Provider() embedding.Provider
	Fallback() embedding.Provider
	Reset()
}
