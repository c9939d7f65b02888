package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"workledger/internal/model"
)

const projectColumns = `
        id, name, status, progress, total_cost, advance_received, remaining_amount,
        version, created_at, updated_at`

type ProjectRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewProjectRepository(db *pgxpool.Pool, logger *zap.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&p.Progress,
		&p.Financials.TotalCost,
		&p.Financials.AdvanceReceived,
		&p.Financials.RemainingAmount,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProjectRepository) GetProject(ctx context.Context, id int) (*model.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "project", id)
	}
	return p, nil
}

const updateProjectProgressSQL = `
        UPDATE projects
        SET progress = $2, version = version + 1, updated_at = NOW()
        WHERE id = $1 AND version = $3
        RETURNING ` + projectColumns

func (r *ProjectRepository) UpdateProgress(ctx context.Context, id, progress, expectedVersion int) (*model.Project, error) {
	r.logger.Debug("Updating project progress",
		zap.Int("project_id", id),
		zap.Int("progress", progress),
		zap.Int("expected_version", expectedVersion),
	)
	p, err := scanProject(r.db.QueryRow(ctx, updateProjectProgressSQL, id, progress, expectedVersion))
	if err == nil {
		return p, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conflictOrMissing(ctx, r.db, "projects", id)
	}
	r.logger.Error("Failed to update project progress", zap.Error(err), zap.Int("project_id", id))
	return nil, err
}

// ListActiveIDs returns projects whose progress may still move.
func (r *ProjectRepository) ListActiveIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id FROM projects
        WHERE status NOT IN ('completed', 'cancelled')
        ORDER BY id
    `)
	if err != nil {
		r.logger.Error("Failed to list active projects", zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}

// ListMilestoneIDs returns the ids of a project's milestones.
func (r *ProjectRepository) ListMilestoneIDs(ctx context.Context, projectID int) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM milestones WHERE project_id = $1 ORDER BY phase_order`, projectID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
