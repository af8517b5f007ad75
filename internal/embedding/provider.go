package embedding

import (
	"context"
	"sync"

	"github.com/marketmatch/marketmatch/internal/config"
	applog "github.com/marketmatch/marketmatch/internal/logger"
)

// Provider generates vector embeddings for queries and documents.
type Provider interface {
	// Name identifies the provider ("openai" or "deterministic").
	Name() string
	// Dimensions is the length of every vector the provider produces.
	Dimensions() int
	// EmbedQuery embeds a single search query.
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
	// EmbedDocuments embeds a batch of document chunks, one vector per
	// input text in the same order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Resolver selects and memoizes the embedding provider. The first call
// to Provider decides: OpenAI when an API key is configured, otherwise
// the deterministic local provider. The decision sticks until Reset.
type Resolver struct {
	mu  sync.Mutex
	cfg config.EmbeddingConfig

	provider Provider
}

// NewResolver creates a Resolver for the given embedding configuration.
func NewResolver(cfg config.EmbeddingConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Provider returns the memoized embedding provider, constructing it on
// first use. It never fails: when no API key is configured the
// deterministic provider serves as the fallback.
func (r *Resolver) Provider() Provider {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider != nil {
		return r.provider
	}

	if r.cfg.APIKey != "" {
		r.provider = NewOpenAIProvider(r.cfg)
		applog.Info("Embedding provider: openai (model=%s, dim=%d)", r.cfg.Model, r.cfg.Dimensions)
	} else {
		r.provider = NewDeterministicProvider(r.cfg.Dimensions)
		applog.Warn("No embedding API key configured, using deterministic embeddings (dim=%d)", r.cfg.Dimensions)
	}
	return r.provider
}

// Fallback returns the deterministic provider without memoizing it.
// Callers use it to re-embed after a remote provider failure.
func (r *Resolver) Fallback() Provider {
	return NewDeterministicProvider(r.cfg.Dimensions)
}

// Reset clears the memoized provider so the next Provider call decides
// again. Safe to call at any time, including when nothing is memoized.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = nil
}
