package domain

import (
	"time"
)

// Query is a recorded natural-language question.
type Query struct {
	ID        string     `gorm:"type:text;primaryKey" json:"id"`
	Content   string     `gorm:"type:text;not null" json:"content"`
	Responses []Response `gorm:"constraint:OnDelete:CASCADE" json:"responses,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// TableName returns the database table name for Query.
func (Query) TableName() string {
	return "queries"
}

// Response is an answer produced for a query, with its source
// attributions.
type Response struct {
	ID        string              `gorm:"type:text;primaryKey" json:"id"`
	Content   string              `gorm:"type:text;not null" json:"content"`
	QueryID   string              `gorm:"type:text;not null;index:idx_responses_query" json:"query_id"`
	Sources   []SourceAttribution `gorm:"constraint:OnDelete:CASCADE" json:"sources,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// TableName returns the database table name for Response.
func (Response) TableName() string {
	return "responses"
}

// SourceAttribution links a response to one retrieved chunk with the
// relevance score the backend returned for it.
type SourceAttribution struct {
	ID             string  `gorm:"type:text;primaryKey" json:"id"`
	ResponseID     string  `gorm:"type:text;not null;index:idx_sources_response" json:"response_id"`
	ChunkID        string  `gorm:"type:text;not null" json:"chunk_id"`
	RelevanceScore float32 `json:"relevance_score"`
}

// TableName returns the database table name for SourceAttribution.
func (SourceAttribution) TableName() string {
	return "source_attributions"
}
