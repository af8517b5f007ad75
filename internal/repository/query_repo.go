package repository

import (
	"context"

	"github.com/marketmatch/marketmatch/internal/domain"
	"gorm.io/gorm"
)

// QueryRepository records queries, responses, and source attributions.
type QueryRepository struct {
	db *gorm.DB
}

// NewQueryRepository creates a new QueryRepository.
func NewQueryRepository(db *gorm.DB) *QueryRepository {
	return &QueryRepository{db: db}
}

// CreateQuery inserts a new query record.
func (r *QueryRepository) CreateQuery(ctx context.Context, q *domain.Query) error {
	return r.db.WithContext(ctx).Create(q).Error
}

// CreateResponse inserts a new response record.
func (r *QueryRepository) CreateResponse(ctx context.Context, resp *domain.Response) error {
	return r.db.WithContext(ctx).Create(resp).Error
}

// AddSources inserts the source attributions for a response.
func (r *QueryRepository) AddSources(ctx context.Context, sources []domain.SourceAttribution) error {
	if len(sources) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&sources).Error
}

// ListRecentQueries retrieves the most recent queries with their responses.
func (r *QueryRepository) ListRecentQueries(ctx context.Context, limit int) ([]domain.Query, error) {
	if limit <= 0 {
		limit = 10
	}
	var queries []domain.Query
	if err := r.db.WithContext(ctx).
		Preload("Responses").
		Order("created_at DESC").
		Limit(limit).
		Find(&queries).Error; err != nil {
		return nil, err
	}
	return queries, nil
}
