package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketmatch/marketmatch/internal/chunker"
	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/logger"
	"github.com/marketmatch/marketmatch/internal/storage"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

// IngestService runs the document ingestion pipeline: persist, chunk,
// embed, index. Indexing is best-effort per chunk; documents are
// always marked processed so a flaky backend cannot wedge ingestion.
type IngestService struct {
	docs       DocumentStore
	backend    BackendResolver
	embeddings EmbeddingSource
	archive    storage.ObjectStorage
	textSplit  *chunker.Splitter
	docSplit   *chunker.Splitter
	logger     *logger.Logger
}

// NewIngestService creates an ingest service. archive may be nil to
// disable original-file archival.
func NewIngestService(
	docs DocumentStore,
	backend BackendResolver,
	embeddings EmbeddingSource,
	archive storage.ObjectStorage,
	textProfile, docProfile chunker.Profile,
	log *logger.Logger,
) *IngestService {
	if log == nil {
		log = logger.GetDefault()
	}
	return &IngestService{
		docs:       docs,
		backend:    backend,
		embeddings: embeddings,
		archive:    archive,
		textSplit:  chunker.New(textProfile),
		docSplit:   chunker.New(docProfile),
		logger:     log,
	}
}

func (s *IngestService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// IngestResult reports what one ingestion produced.
type IngestResult struct {
	Document      *domain.Document `json:"document"`
	ChunksCreated int              `json:"chunks_created"`
	ChunksIndexed int              `json:"chunks_indexed"`
}

// IngestText ingests raw text as a document using the text chunking
// profile.
func (s *IngestService) IngestText(ctx context.Context, title, text string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text content is empty")
	}
	return s.ingest(ctx, &domain.Document{
		ID:          uuid.NewString(),
		Title:       title,
		RawContent:  text,
		ContentType: "text/plain",
	}, s.textSplit, nil)
}

// IngestDocument ingests an uploaded file using the document chunking
// profile. The original bytes are archived when archival is configured.
func (s *IngestService) IngestDocument(ctx context.Context, filename, title, contentType string, content []byte) (*IngestResult, error) {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("document content is empty")
	}
	if title == "" {
		title = filename
	}
	return s.ingest(ctx, &domain.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		Title:       title,
		RawContent:  text,
		ContentType: contentType,
	}, s.docSplit, content)
}

// ingest persists the document, splits it, stores the chunk rows, and
// indexes them.
func (s *IngestService) ingest(ctx context.Context, doc *domain.Document, splitter *chunker.Splitter, raw []byte) (*IngestResult, error) {
	ctx = logger.SetDocumentID(ctx, doc.ID)
	start := time.Now()

	s.archiveOriginal(ctx, doc, raw)

	if err := s.docs.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("failed to store document: %w", err)
	}

	pieces := splitter.Split(doc.RawContent, splitMetadata(doc))

	chunks := make([]domain.DocumentChunk, 0, len(pieces))
	for i, piece := range pieces {
		chunk := domain.DocumentChunk{
			ID:         uuid.NewString(),
			Content:    piece.Content,
			ChunkIndex: i,
			DocumentID: doc.ID,
		}
		if err := s.docs.CreateChunk(ctx, &chunk); err != nil {
			return nil, fmt.Errorf("failed to store chunk %d: %w", i, err)
		}
		chunks = append(chunks, chunk)
	}

	indexed := s.indexChunks(ctx, doc, chunks)

	if err := s.docs.MarkDocumentProcessed(ctx, doc.ID); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to mark document processed")
	}
	doc.Processed = true

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldCount:      len(chunks),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Document ingested")

	return &IngestResult{
		Document:      doc,
		ChunksCreated: len(chunks),
		ChunksIndexed: indexed,
	}, nil
}

// splitMetadata builds the metadata every chunk of a document
// inherits.
func splitMetadata(doc *domain.Document) map[string]string {
	source := doc.Filename
	if source == "" {
		source = doc.Title
	}
	return map[string]string{
		"document_id": doc.ID,
		"source":      source,
		"file_type":   doc.ContentType,
	}
}

// archiveOriginal uploads the raw file bytes. Failures are logged and
// ignored.
func (s *IngestService) archiveOriginal(ctx context.Context, doc *domain.Document, raw []byte) {
	if s.archive == nil || len(raw) == 0 {
		return
	}
	name := doc.Filename
	if name == "" {
		name = "content.txt"
	}
	key := fmt.Sprintf("uploads/%s/%s", doc.ID, name)
	if err := s.archive.Upload(ctx, key, bytes.NewReader(raw), int64(len(raw)), doc.ContentType); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to archive original upload")
		return
	}
	doc.ArchiveKey = key
}

// indexChunks embeds and upserts the chunks, returning how many made
// it into the index. A remote embedding failure falls back to the
// deterministic provider; a managed backend failure latches the
// fallback and retries once against the local store.
func (s *IngestService) indexChunks(ctx context.Context, doc *domain.Document, chunks []domain.DocumentChunk) int {
	if len(chunks) == 0 {
		return 0
	}

	store, err := s.backend.Store(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Error("No vector store available, chunks stored but not indexed")
		return 0
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	provider := s.embeddings.Provider()
	vectors, err := provider.EmbedDocuments(ctx, texts)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Embedding provider failed, using deterministic fallback")
		provider = s.embeddings.Fallback()
		vectors, err = provider.EmbedDocuments(ctx, texts)
		if err != nil {
			s.log(ctx).WithError(err).Error("Fallback embedding failed, chunks stored but not indexed")
			return 0
		}
	}

	items := make([]vectorstore.Item, len(chunks))
	for i, chunk := range chunks {
		items[i] = vectorstore.Item{
			ID:      chunk.ID,
			Vector:  vectors[i],
			Content: chunk.Content,
			Metadata: domain.VectorMetadata{
				ChunkID:       chunk.ID,
				DocumentID:    doc.ID,
				DocumentTitle: doc.Title,
				ChunkIndex:    chunk.ChunkIndex,
			},
		}
	}

	if err := store.Upsert(ctx, items); err != nil {
		if store.Kind() == vectorstore.KindQdrant && errors.Is(err, vectorstore.ErrBackendUnavailable) {
			s.log(ctx).WithError(err).Warn("Managed vector store failed mid-ingest, falling back to local")
			s.backend.MarkManagedFailed()
			store, err = s.backend.Store(ctx)
			if err == nil {
				err = store.Upsert(ctx, items)
			}
		}
		if err != nil {
			s.log(ctx).WithError(err).Error("Failed to index chunks, chunks stored but not indexed")
			return 0
		}
	}

	// Record which point each chunk maps to.
	for i := range chunks {
		chunks[i].EmbeddingID = chunks[i].ID
		if err := s.docs.UpdateChunk(ctx, &chunks[i]); err != nil {
			s.log(ctx).WithError(err).Warnf("Failed to record embedding ID for chunk %s", chunks[i].ID)
		}
	}
	return len(items)
}

// DeleteDocument removes a document, its chunks, and rebuilds the
// vector index so no orphaned vectors remain.
func (s *IngestService) DeleteDocument(ctx context.Context, id string) error {
	if _, err := s.docs.GetDocument(ctx, id); err != nil {
		return err
	}
	if err := s.docs.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	store, err := s.backend.Store(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Document deleted but index not rebuilt")
		return nil
	}
	if err := store.DeleteAll(ctx); err != nil {
		s.log(ctx).WithError(err).Warn("Document deleted but index not cleared")
		return nil
	}
	if n, err := s.backend.Rebuild(ctx, store); err != nil {
		s.log(ctx).WithError(err).Warn("Index rebuild after delete failed")
	} else {
		s.log(ctx).WithField(logger.FieldCount, n).Info("Index rebuilt after document delete")
	}
	return nil
}
