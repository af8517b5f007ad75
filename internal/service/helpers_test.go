package service

import (
	"context"
	"fmt"

	"github.com/marketmatch/marketmatch/internal/config"
	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/embedding"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

// fakeStore is an in-memory vectorstore.Store with scriptable
// failures.
type fakeStore struct {
	kind      string
	items     []vectorstore.Item
	matches   []domain.Match
	upsertErr error
	searchErr error
	cleared   bool
}

func (s *fakeStore) Kind() string { return s.kind }

func (s *fakeStore) Upsert(_ context.Context, items []vectorstore.Item) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.items = append(s.items, items...)
	return nil
}

func (s *fakeStore) SimilaritySearch(_ context.Context, _ []float32, k int) ([]domain.Match, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if len(s.matches) > k {
		return s.matches[:k], nil
	}
	return s.matches, nil
}

func (s *fakeStore) DeleteAll(_ context.Context) error {
	s.items = nil
	s.cleared = true
	return nil
}

func (s *fakeStore) Stats(_ context.Context) (vectorstore.Stats, error) {
	return vectorstore.Stats{Kind: s.kind, Count: int64(len(s.items))}, nil
}

func (s *fakeStore) Close() error { return nil }

// fakeBackend is a BackendResolver serving a primary store and, after
// a managed failure, a fallback store.
type fakeBackend struct {
	primary       vectorstore.Store
	fallback      vectorstore.Store
	storeCalls    int
	managedFailed bool
	resets        int
	rebuilt       int
}

func (b *fakeBackend) Store(_ context.Context) (vectorstore.Store, error) {
	b.storeCalls++
	if b.managedFailed && b.fallback != nil {
		return b.fallback, nil
	}
	if b.primary == nil {
		return nil, fmt.Errorf("no store configured")
	}
	return b.primary, nil
}

func (b *fakeBackend) Rebuild(_ context.Context, _ vectorstore.Store) (int, error) {
	return b.rebuilt, nil
}

func (b *fakeBackend) MarkManagedFailed() { b.managedFailed = true }
func (b *fakeBackend) ManagedFailed() bool { return b.managedFailed }

func (b *fakeBackend) ActiveKind() string {
	if b.managedFailed && b.fallback != nil {
		return b.fallback.Kind()
	}
	if b.primary != nil {
		return b.primary.Kind()
	}
	return ""
}

func (b *fakeBackend) Reset() { b.resets++ }

// fakeQueryStore records everything the pipeline persists.
type fakeQueryStore struct {
	queries   []domain.Query
	responses []domain.Response
	sources   []domain.SourceAttribution
}

func (s *fakeQueryStore) CreateQuery(_ context.Context, q *domain.Query) error {
	s.queries = append(s.queries, *q)
	return nil
}

func (s *fakeQueryStore) CreateResponse(_ context.Context, resp *domain.Response) error {
	s.responses = append(s.responses, *resp)
	return nil
}

func (s *fakeQueryStore) AddSources(_ context.Context, sources []domain.SourceAttribution) error {
	s.sources = append(s.sources, sources...)
	return nil
}

func (s *fakeQueryStore) ListRecentQueries(_ context.Context, limit int) ([]domain.Query, error) {
	if len(s.queries) > limit {
		return s.queries[:limit], nil
	}
	return s.queries, nil
}

// fakeDocumentStore is an in-memory DocumentStore.
type fakeDocumentStore struct {
	docs   map[string]*domain.Document
	chunks map[string]*domain.DocumentChunk
}

func newFakeDocumentStore() *fakeDocumentStore {
	return &fakeDocumentStore{
		docs:   make(map[string]*domain.Document),
		chunks: make(map[string]*domain.DocumentChunk),
	}
}

func (s *fakeDocumentStore) CreateDocument(_ context.Context, doc *domain.Document) error {
	copied := *doc
	s.docs[doc.ID] = &copied
	return nil
}

func (s *fakeDocumentStore) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, fmt.Errorf("document %s not found", id)
	}
	return doc, nil
}

func (s *fakeDocumentStore) ListDocuments(_ context.Context) ([]domain.Document, error) {
	out := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (s *fakeDocumentStore) MarkDocumentProcessed(_ context.Context, id string) error {
	if doc, ok := s.docs[id]; ok {
		doc.Processed = true
	}
	return nil
}

func (s *fakeDocumentStore) DeleteDocument(_ context.Context, id string) error {
	delete(s.docs, id)
	for chunkID, chunk := range s.chunks {
		if chunk.DocumentID == id {
			delete(s.chunks, chunkID)
		}
	}
	return nil
}

func (s *fakeDocumentStore) CreateChunk(_ context.Context, chunk *domain.DocumentChunk) error {
	copied := *chunk
	s.chunks[chunk.ID] = &copied
	return nil
}

func (s *fakeDocumentStore) UpdateChunk(_ context.Context, chunk *domain.DocumentChunk) error {
	copied := *chunk
	s.chunks[chunk.ID] = &copied
	return nil
}

func (s *fakeDocumentStore) ListChunksByDocument(_ context.Context, documentID string) ([]domain.DocumentChunk, error) {
	var out []domain.DocumentChunk
	for _, chunk := range s.chunks {
		if chunk.DocumentID == documentID {
			out = append(out, *chunk)
		}
	}
	return out, nil
}

func (s *fakeDocumentStore) CountChunks(_ context.Context) (int64, error) {
	return int64(len(s.chunks)), nil
}

// fakeGenerator is a scriptable generation.Provider.
type fakeGenerator struct {
	answer string
	err    error
	calls  int
}

func (g *fakeGenerator) Name() string { return "fake" }

func (g *fakeGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	g.calls++
	return g.answer, g.err
}

func testEmbeddings() EmbeddingSource {
	return embedding.NewResolver(config.EmbeddingConfig{Dimensions: 8})
}
