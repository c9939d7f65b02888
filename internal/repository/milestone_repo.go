package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"workledger/internal/model"
)

type MilestoneRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewMilestoneRepository(db *pgxpool.Pool, logger *zap.Logger) *MilestoneRepository {
	return &MilestoneRepository{
		db:     db,
		logger: logger,
	}
}

func scanMilestone(row pgx.Row) (*model.Milestone, error) {
	var m model.Milestone
	if err := row.Scan(
		&m.ID,
		&m.ProjectID,
		&m.Title,
		&m.PhaseOrder,
		&m.Progress,
		&m.Version,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MilestoneRepository) GetMilestone(ctx context.Context, id int) (*model.Milestone, error) {
	query := `
        SELECT id, project_id, title, phase_order, progress, version, created_at, updated_at
        FROM milestones
        WHERE id = $1
    `
	m, err := scanMilestone(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "milestone", id)
	}
	return m, nil
}

func (r *MilestoneRepository) ListByProject(ctx context.Context, projectID int) ([]model.Milestone, error) {
	query := `
        SELECT id, project_id, title, phase_order, progress, version, created_at, updated_at
        FROM milestones
        WHERE project_id = $1
        ORDER BY phase_order ASC
    `
	rows, err := r.db.Query(ctx, query, projectID)
	if err != nil {
		r.logger.Error("Failed to find milestones", zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	var milestones []model.Milestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			r.logger.Error("Failed to scan milestone", zap.Error(err))
			return nil, err
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}

const updateMilestoneProgressSQL = `
        UPDATE milestones
        SET progress = $2, version = version + 1, updated_at = NOW()
        WHERE id = $1 AND version = $3`

func (r *MilestoneRepository) UpdateProgress(ctx context.Context, id, progress, expectedVersion int) error {
	r.logger.Debug("Updating milestone progress",
		zap.Int("milestone_id", id),
		zap.Int("progress", progress),
		zap.Int("expected_version", expectedVersion),
	)
	tag, err := r.db.Exec(ctx, updateMilestoneProgressSQL, id, progress, expectedVersion)
	if err != nil {
		r.logger.Error("Failed to update milestone progress", zap.Error(err), zap.Int("milestone_id", id))
		return err
	}
	if tag.RowsAffected() == 0 {
		return conflictOrMissing(ctx, r.db, "milestones", id)
	}
	return nil
}
