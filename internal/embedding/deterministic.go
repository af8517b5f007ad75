package embedding

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"
)

// DefaultDimensions matches the vector size of text-embedding-ada-002
// so locally embedded vectors stay interchangeable with remote ones.
const DefaultDimensions = 1536

// DeterministicProvider produces embeddings from a hash of the input
// text alone. The same text always maps to the same unit vector, so an
// index built with it remains searchable across restarts without any
// external service. The vectors carry no semantic signal; similarity
// against them is only meaningful for exact or near-exact text reuse.
type DeterministicProvider struct {
	dimensions int
}

// NewDeterministicProvider creates a deterministic provider producing
// vectors of the given length, defaulting to DefaultDimensions.
func NewDeterministicProvider(dimensions int) *DeterministicProvider {
	if dimensions <= 0 {
		dimensions = DefaultDimensions
	}
	return &DeterministicProvider{dimensions: dimensions}
}

// Name identifies the provider.
func (p *DeterministicProvider) Name() string { return "deterministic" }

// Dimensions returns the vector length.
func (p *DeterministicProvider) Dimensions() int { return p.dimensions }

// EmbedQuery embeds a single query. It cannot fail.
func (p *DeterministicProvider) EmbedQuery(_ context.Context, query string) ([]float32, error) {
	return p.embed(query), nil
}

// EmbedDocuments embeds each text independently, preserving order.
func (p *DeterministicProvider) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.embed(text)
	}
	return vectors, nil
}

// embed draws the vector from a PRNG seeded by the MD5 of the text and
// L2-normalizes it to unit length.
func (p *DeterministicProvider) embed(text string) []float32 {
	sum := md5.Sum([]byte(text))
	seed := int64(binary.BigEndian.Uint64(sum[:8]))
	rng := rand.New(rand.NewSource(seed))

	vector := make([]float64, p.dimensions)
	var norm float64
	for i := range vector {
		vector[i] = rng.NormFloat64()
		norm += vector[i] * vector[i]
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		norm = 1
	}

	out := make([]float32, p.dimensions)
	for i, v := range vector {
		out[i] = float32(v / norm)
	}
	return out
}
