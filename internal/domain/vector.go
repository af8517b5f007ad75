package domain

// VectorMetadata is the payload carried by each indexed vector. The
// identifiers are kept as strings because managed backends reject
// non-string payload values.
type VectorMetadata struct {
	ChunkID       string `json:"chunk_id"`
	DocumentID    string `json:"document_id"`
	DocumentTitle string `json:"document_title"`
	ChunkIndex    int    `json:"chunk_index"`
}

// Match is one similarity search hit.
//
// Score is cosine similarity (higher = more similar) for every
// backend. Values are passed through from the backend unmodified and
// are not comparable across backends.
type Match struct {
	Content  string         `json:"content"`
	Metadata VectorMetadata `json:"metadata"`
	Score    float32        `json:"relevance_score"`
}
