package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"workledger/internal/model"
)

const taskColumns = `
        t.id, t.milestone_id, t.title, t.status, t.due_date, t.started_at, t.completed_at,
        ARRAY(SELECT a.employee_id FROM task_assignees a WHERE a.task_id = t.id ORDER BY a.employee_id),
        t.created_at, t.updated_at`

type TaskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) *TaskRepository {
	return &TaskRepository{db: db, logger: logger}
}

func scanTask(row pgx.Row) (*model.Task, error) {
	var t model.Task
	if err := row.Scan(
		&t.ID,
		&t.MilestoneID,
		&t.Title,
		&t.Status,
		&t.DueDate,
		&t.StartedAt,
		&t.CompletedAt,
		&t.Assignees,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id int) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.id = $1`
	t, err := scanTask(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, notFound(err, "task", id)
	}
	return t, nil
}

func (r *TaskRepository) ListByMilestone(ctx context.Context, milestoneID int) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.milestone_id = $1 ORDER BY t.id`
	return r.list(ctx, query, milestoneID)
}

func (r *TaskRepository) ListAssignedTo(ctx context.Context, employeeID int) ([]model.Task, error) {
	query := `
        SELECT ` + taskColumns + `
        FROM tasks t
        JOIN task_assignees ta ON ta.task_id = t.id
        WHERE ta.employee_id = $1
        ORDER BY t.id`
	return r.list(ctx, query, employeeID)
}

func (r *TaskRepository) list(ctx context.Context, query string, arg int) ([]model.Task, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error("Failed to query tasks", zap.Error(err), zap.Int("arg", arg))
		return nil, err
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			r.logger.Error("Failed to scan task", zap.Error(err))
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

const stampTransitionSQL = `
        WITH stamped AS (
            UPDATE tasks
            SET started_at   = CASE WHEN $2 = 'in_progress' THEN COALESCE(started_at, $3) ELSE started_at END,
                completed_at = CASE WHEN $2 = 'completed'   THEN COALESCE(completed_at, $3) ELSE completed_at END,
                updated_at   = NOW()
            WHERE id = $1
            RETURNING *
        )
        SELECT ` + taskColumns + ` FROM stamped t`

// StampTransition fills started_at on entry into in_progress and
// completed_at on entry into completed, never overwriting an existing
// value. The status column itself is owned by the CRUD layer.
func (r *TaskRepository) StampTransition(ctx context.Context, taskID int, status model.TaskStatus, at time.Time) (*model.Task, error) {
	r.logger.Debug("Stamping task transition",
		zap.Int("task_id", taskID),
		zap.String("status", string(status)),
	)
	t, err := scanTask(r.db.QueryRow(ctx, stampTransitionSQL, taskID, string(status), at))
	if err != nil {
		r.logger.Error("Failed to stamp task transition", zap.Error(err), zap.Int("task_id", taskID))
		return nil, notFound(err, "task", taskID)
	}
	return t, nil
}
