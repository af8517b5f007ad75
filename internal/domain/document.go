package domain

import (
	"time"
)

// Document represents an ingested text document. The relational store
// is the system of record for document text; the vector index is a
// derived, rebuildable cache over the chunks.
type Document struct {
	ID          string          `gorm:"type:text;primaryKey" json:"id"`
	Filename    string          `gorm:"type:text;not null" json:"filename"`
	Title       string          `gorm:"type:text" json:"title"`
	RawContent  string          `gorm:"type:text" json:"raw_content,omitempty"`
	ContentType string          `gorm:"type:text" json:"content_type"`
	ArchiveKey  string          `gorm:"type:text" json:"archive_key,omitempty"`
	Processed   bool            `gorm:"index:idx_documents_processed;default:false" json:"processed"`
	Chunks      []DocumentChunk `gorm:"constraint:OnDelete:CASCADE" json:"chunks,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TableName returns the database table name for Document.
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk is a bounded span of a document's text, the atomic
// unit stored and retrieved by the vector index. ChunkIndex is unique
// within a document and densely numbered from 0; chunks are immutable
// once created and removed with their parent document.
type DocumentChunk struct {
	ID          string    `gorm:"type:text;primaryKey" json:"id"`
	Content     string    `gorm:"type:text;not null" json:"content"`
	ChunkIndex  int       `gorm:"not null;index:idx_chunks_document" json:"chunk_index"`
	EmbeddingID string    `gorm:"type:text" json:"embedding_id,omitempty"`
	DocumentID  string    `gorm:"type:text;not null;index:idx_chunks_document" json:"document_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for DocumentChunk.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// IndexEntry is the flattened chunk+document row used to (re)build a
// vector index from the relational store.
type IndexEntry struct {
	ChunkID       string
	DocumentID    string
	DocumentTitle string
	ChunkIndex    int
	Content       string
}
