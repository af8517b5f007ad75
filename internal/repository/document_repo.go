package repository

import (
	"context"
	"fmt"

	"github.com/marketmatch/marketmatch/internal/domain"
	"gorm.io/gorm"
)

// DocumentRepository handles document and chunk data operations.
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository.
// Parameters:
//   - db: GORM database handle used for queries.
// Returns:
//   - *DocumentRepository: repository instance bound to db.
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// CreateDocument inserts a new document record.
func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *domain.Document) error {
	return r.db.WithContext(ctx).Create(doc).Error
}

// GetDocument retrieves a document by its ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	var doc domain.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// ListDocuments retrieves all documents, newest first, without chunk bodies.
func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	var docs []domain.Document
	if err := r.db.WithContext(ctx).
		Omit("raw_content").
		Order("created_at DESC").
		Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// MarkDocumentProcessed flips the processed flag for a document.
// The transition happens exactly once per document; repeating it is a no-op.
func (r *DocumentRepository) MarkDocumentProcessed(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Update("processed", true).Error
}

// DeleteDocument removes a document and, via cascade, its chunks.
func (r *DocumentRepository) DeleteDocument(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Select("Chunks").Delete(&domain.Document{ID: id}).Error
}

// CreateChunk inserts a new document chunk.
func (r *DocumentRepository) CreateChunk(ctx context.Context, chunk *domain.DocumentChunk) error {
	return r.db.WithContext(ctx).Create(chunk).Error
}

// UpdateChunk updates an existing chunk record (embedding reference).
func (r *DocumentRepository) UpdateChunk(ctx context.Context, chunk *domain.DocumentChunk) error {
	return r.db.WithContext(ctx).Save(chunk).Error
}

// GetChunk retrieves a chunk by its ID.
func (r *DocumentRepository) GetChunk(ctx context.Context, id string) (*domain.DocumentChunk, error) {
	var chunk domain.DocumentChunk
	if err := r.db.WithContext(ctx).First(&chunk, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &chunk, nil
}

// ListChunksByDocument retrieves the chunks of one document in index order.
func (r *DocumentRepository) ListChunksByDocument(ctx context.Context, documentID string) ([]domain.DocumentChunk, error) {
	var chunks []domain.DocumentChunk
	if err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, err
	}
	return chunks, nil
}

// CountChunks counts all stored chunks.
func (r *DocumentRepository) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.DocumentChunk{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListIndexEntries returns every chunk joined with its document title,
// in (document, chunk_index) order. This is the read path index
// rebuilds run on.
func (r *DocumentRepository) ListIndexEntries(ctx context.Context) ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry
	err := r.db.WithContext(ctx).
		Model(&domain.DocumentChunk{}).
		Select("document_chunks.id AS chunk_id, document_chunks.document_id AS document_id, documents.title AS document_title, document_chunks.chunk_index AS chunk_index, document_chunks.content AS content").
		Joins("JOIN documents ON documents.id = document_chunks.document_id").
		Order("document_chunks.document_id, document_chunks.chunk_index").
		Scan(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list index entries: %w", err)
	}
	return entries, nil
}
