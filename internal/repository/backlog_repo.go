package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"workledger/internal/model"
)

// Each query finds the rows a missed hook left without their side effect.
const (
	unrecordedAdvanceSQL = `
        SELECT p.id FROM projects p
        WHERE p.advance_received > 0
          AND NOT EXISTS (
              SELECT 1 FROM transactions t
              WHERE t.source_type = $1 AND t.project_id = p.id)
        ORDER BY p.id`

	unsettledProjectsSQL = `
        SELECT DISTINCT p.id FROM projects p
        JOIN incentives i ON i.project_id = p.id
        WHERE p.status = 'completed'
          AND p.remaining_amount = 0
          AND i.is_conversion_based
          AND i.pending_balance > 0
        ORDER BY p.id`

	unscoredTasksSQL = `
        SELECT DISTINCT t.id FROM tasks t
        JOIN task_assignees a ON a.task_id = t.id
        WHERE t.status = 'completed'
          AND t.completed_at IS NOT NULL
          AND NOT EXISTS (
              SELECT 1 FROM points_history h
              WHERE h.employee_id = a.employee_id AND h.task_id = t.id)
        ORDER BY t.id`
)

// BacklogRepository lists work the reconciler still has to redo.
type BacklogRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewBacklogRepository(db *pgxpool.Pool, logger *zap.Logger) *BacklogRepository {
	return &BacklogRepository{db: db, logger: logger}
}

// ListUnrecordedAdvanceIDs returns projects with an advance payment but no
// advance transaction.
func (r *BacklogRepository) ListUnrecordedAdvanceIDs(ctx context.Context) ([]int, error) {
	return r.ids(ctx, "unrecorded advances", unrecordedAdvanceSQL, model.SourceProjectConversion)
}

// ListUnsettledIDs returns completed, fully paid projects that still hold
// pending conversion-based incentives.
func (r *BacklogRepository) ListUnsettledIDs(ctx context.Context) ([]int, error) {
	return r.ids(ctx, "unsettled projects", unsettledProjectsSQL)
}

// ListUnscoredTaskIDs returns completed tasks with at least one assignee
// lacking a points entry for them.
func (r *BacklogRepository) ListUnscoredTaskIDs(ctx context.Context) ([]int, error) {
	return r.ids(ctx, "unscored tasks", unscoredTasksSQL)
}

func (r *BacklogRepository) ids(ctx context.Context, what, query string, args ...any) ([]int, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list backlog", zap.String("backlog", what), zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
