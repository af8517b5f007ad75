package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marketmatch/marketmatch/internal/domain"
	"github.com/marketmatch/marketmatch/internal/generation"
	"github.com/marketmatch/marketmatch/internal/logger"
	"github.com/marketmatch/marketmatch/internal/prompts"
	"github.com/marketmatch/marketmatch/internal/vectorstore"
)

// degradedExcerptLen caps each excerpt shown in a degraded answer.
const degradedExcerptLen = 200

// RAGService answers questions over the indexed documents. Query never
// returns an error: every failure path degrades to a well-formed
// answer so callers always have something to show.
type RAGService struct {
	queries    QueryStore
	backend    BackendResolver
	embeddings EmbeddingSource
	generator  generation.Provider
	topK       int
	logger     *logger.Logger
}

// NewRAGService creates the query pipeline. generator may be nil, in
// which case every answer with retrieved context is degraded.
func NewRAGService(
	queries QueryStore,
	backend BackendResolver,
	embeddings EmbeddingSource,
	generator generation.Provider,
	topK int,
	log *logger.Logger,
) *RAGService {
	if topK <= 0 {
		topK = 5
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &RAGService{
		queries:    queries,
		backend:    backend,
		embeddings: embeddings,
		generator:  generator,
		topK:       topK,
		logger:     log,
	}
}

func (s *RAGService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// QueryMetadata describes how an answer was produced.
type QueryMetadata struct {
	DocumentCount int       `json:"document_count"`
	Timestamp     time.Time `json:"timestamp"`
	Error         string    `json:"error,omitempty"`
}

// QueryResult is the always-well-formed outcome of one question.
type QueryResult struct {
	QueryID  string         `json:"query_id,omitempty"`
	Question string         `json:"question"`
	Answer   string         `json:"answer"`
	Sources  []domain.Match `json:"sources"`
	Backend  string         `json:"backend,omitempty"`
	Degraded bool           `json:"degraded"`
	Metadata QueryMetadata  `json:"metadata"`
}

// Query runs the retrieval pipeline for one question.
func (s *RAGService) Query(ctx context.Context, question string) (result *QueryResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log(ctx).Errorf("Query pipeline panic: %v", r)
			result = &QueryResult{
				Question: question,
				Answer:   prompts.NoContextAnswer,
				Sources:  []domain.Match{},
				Degraded: true,
				Metadata: QueryMetadata{
					Timestamp: time.Now(),
					Error:     fmt.Sprintf("%v", r),
				},
			}
		}
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		return &QueryResult{
			Question: question,
			Answer:   prompts.EmptyQuestionAnswer,
			Sources:  []domain.Match{},
			Metadata: QueryMetadata{Timestamp: time.Now()},
		}
	}

	start := time.Now()
	result = &QueryResult{
		Question: question,
		Sources:  []domain.Match{},
	}

	matches, backendKind, retrieveErr := s.retrieve(ctx, question)
	result.Backend = backendKind
	result.Metadata = QueryMetadata{
		DocumentCount: countDistinctDocuments(matches),
		Timestamp:     time.Now(),
	}
	if retrieveErr != nil {
		result.Metadata.Error = retrieveErr.Error()
	}

	if len(matches) == 0 {
		result.Answer = prompts.NoContextAnswer
		s.persist(ctx, result)
		return result
	}
	result.Sources = matches

	contextText := buildContext(matches)
	answer, degraded := s.generate(ctx, question, contextText, matches)
	result.Answer = answer
	result.Degraded = degraded

	s.persist(ctx, result)

	s.log(ctx).WithFields(logger.Fields{
		logger.FieldBackend:    backendKind,
		logger.FieldCount:      len(matches),
		logger.FieldDurationMs: time.Since(start).Milliseconds(),
	}).Info("Query answered")

	return result
}

// retrieve embeds the question and searches the active backend,
// falling back to the local store when the managed one fails. The
// returned error is informational: the caller surfaces it in the
// result metadata and still answers.
func (s *RAGService) retrieve(ctx context.Context, question string) ([]domain.Match, string, error) {
	provider := s.embeddings.Provider()
	vector, err := provider.EmbedQuery(ctx, question)
	if err != nil {
		s.log(ctx).WithError(err).Warn("Query embedding failed, using deterministic fallback")
		vector, err = s.embeddings.Fallback().EmbedQuery(ctx, question)
		if err != nil {
			s.log(ctx).WithError(err).Error("Fallback query embedding failed")
			return nil, "", fmt.Errorf("failed to embed query: %w", err)
		}
	}

	store, err := s.backend.Store(ctx)
	if err != nil {
		s.log(ctx).WithError(err).Error("No vector store available for query")
		return nil, "", fmt.Errorf("failed to resolve vector store: %w", err)
	}

	kind := store.Kind()
	matches, err := store.SimilaritySearch(ctx, vector, s.topK)
	if err != nil {
		if kind == vectorstore.KindQdrant && errors.Is(err, vectorstore.ErrBackendUnavailable) {
			s.log(ctx).WithError(err).Warn("Managed vector store failed mid-query, falling back to local")
			s.backend.MarkManagedFailed()
			store, err = s.backend.Store(ctx)
			if err == nil {
				kind = store.Kind()
				matches, err = store.SimilaritySearch(ctx, vector, s.topK)
			}
		}
		if err != nil {
			s.log(ctx).WithError(err).Error("Similarity search failed")
			return nil, kind, fmt.Errorf("similarity search failed: %w", err)
		}
	}
	return matches, kind, nil
}

// generate produces the answer text, degrading to a context listing
// when no generator is configured or the call fails.
func (s *RAGService) generate(ctx context.Context, question, contextText string, matches []domain.Match) (string, bool) {
	if s.generator != nil {
		answer, err := s.generator.Generate(ctx, prompts.RAGSystemPrompt, prompts.BuildRAGPrompt(contextText, question))
		if err == nil && strings.TrimSpace(answer) != "" {
			return answer, false
		}
		if err != nil {
			s.log(ctx).WithError(err).Warn("Answer generation failed, returning retrieved context")
		}
	}
	return degradedAnswer(matches), true
}

// countDistinctDocuments counts the documents the matches came from.
func countDistinctDocuments(matches []domain.Match) int {
	seen := make(map[string]struct{}, len(matches))
	for _, match := range matches {
		seen[match.Metadata.DocumentID] = struct{}{}
	}
	return len(seen)
}

// buildContext joins the retrieved chunk contents for the prompt.
func buildContext(matches []domain.Match) string {
	parts := make([]string, len(matches))
	for i, match := range matches {
		parts[i] = match.Content
	}
	return strings.Join(parts, "\n\n")
}

// degradedAnswer lists the retrieved excerpts directly.
func degradedAnswer(matches []domain.Match) string {
	var b strings.Builder
	b.WriteString(prompts.DegradedAnswerPrefix)
	for i, match := range matches {
		excerpt := match.Content
		if len(excerpt) > degradedExcerptLen {
			excerpt = excerpt[:degradedExcerptLen] + "..."
		}
		title := match.Metadata.DocumentTitle
		if title == "" {
			title = "untitled"
		}
		b.WriteString(fmt.Sprintf("\n\n%d. [%s] %s", i+1, title, excerpt))
	}
	return b.String()
}

// persist records the query, its response, and source attributions.
// Failures are logged; they never affect the returned result.
func (s *RAGService) persist(ctx context.Context, result *QueryResult) {
	if s.queries == nil {
		return
	}

	query := &domain.Query{
		ID:      uuid.NewString(),
		Content: result.Question,
	}
	if err := s.queries.CreateQuery(ctx, query); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record query")
		return
	}
	result.QueryID = query.ID

	response := &domain.Response{
		ID:      uuid.NewString(),
		Content: result.Answer,
		QueryID: query.ID,
	}
	if err := s.queries.CreateResponse(ctx, response); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record response")
		return
	}

	if len(result.Sources) == 0 {
		return
	}
	sources := make([]domain.SourceAttribution, len(result.Sources))
	for i, match := range result.Sources {
		sources[i] = domain.SourceAttribution{
			ID:             uuid.NewString(),
			ResponseID:     response.ID,
			ChunkID:        match.Metadata.ChunkID,
			RelevanceScore: match.Score,
		}
	}
	if err := s.queries.AddSources(ctx, sources); err != nil {
		s.log(ctx).WithError(err).Warn("Failed to record source attributions")
	}
}

// History returns the most recent queries with their responses.
func (s *RAGService) History(ctx context.Context, limit int) ([]domain.Query, error) {
	if s.queries == nil {
		return nil, nil
	}
	return s.queries.ListRecentQueries(ctx, limit)
}
