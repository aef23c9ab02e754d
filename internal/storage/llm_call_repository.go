package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/fleveque/crm-service/internal/model"
)

// LLMCallRepository handles persistence of LLM call accounting.
// Go interfaces are implicit: any struct that has these methods satisfies it.
// This makes testing easy: a fake only needs these three methods.
type LLMCallRepository interface {
	Create(ctx context.Context, call *model.LLMCall) error
	Count(ctx context.Context) (int64, error)
	Stats(ctx context.Context) ([]model.CallStats, error)
}

// sqliteLLMCallRepository is unexported; only the interface is public.
type sqliteLLMCallRepository struct {
	db *sqlx.DB
}

// NewLLMCallRepository creates a new SQLite-backed LLMCallRepository.
func NewLLMCallRepository(db *sqlx.DB) LLMCallRepository {
	return &sqliteLLMCallRepository{db: db}
}

func (r *sqliteLLMCallRepository) Create(ctx context.Context, call *model.LLMCall) error {
	// NamedExecContext uses the struct's `db:` tags to map fields to :named placeholders.
	result, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_calls (prompt, provider, model, success, error_kind, duration_ms)
		VALUES (:prompt, :provider, :model, :success, :error_kind, :duration_ms)
	`, call)
	if err != nil {
		return fmt.Errorf("creating llm call record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	call.ID = id
	return nil
}

func (r *sqliteLLMCallRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM llm_calls")
	return count, err
}

// Stats aggregates calls per prompt and provider, ordered for stable output.
func (r *sqliteLLMCallRepository) Stats(ctx context.Context) ([]model.CallStats, error) {
	var stats []model.CallStats
	err := r.db.SelectContext(ctx, &stats, `
		SELECT
			prompt,
			provider,
			COUNT(*) AS total,
			COALESCE(SUM(success), 0) AS succeeded,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms
		FROM llm_calls
		GROUP BY prompt, provider
		ORDER BY prompt, provider
	`)
	if err != nil {
		return nil, fmt.Errorf("aggregating llm calls: %w", err)
	}
	return stats, nil
}
