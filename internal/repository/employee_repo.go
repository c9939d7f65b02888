package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	mqcontracts "workledger/contracts/mq"
	"workledger/internal/model"
	"workledger/pkg/outbox"
)

const employeeColumns = `
        id, name, email, manager_id, is_team_lead, is_active, points,
        tasks_completed, tasks_on_time, tasks_overdue, completion_rate, updated_at`

type EmployeeRepository struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewEmployeeRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *EmployeeRepository {
	return &EmployeeRepository{db: db, outboxRepo: outboxRepo, logger: logger}
}

func scanEmployee(row pgx.Row) (*model.Employee, error) {
	var e model.Employee
	if err := row.Scan(
		&e.ID,
		&e.Name,
		&e.Email,
		&e.ManagerID,
		&e.IsTeamLead,
		&e.IsActive,
		&e.Points,
		&e.Stats.TasksCompleted,
		&e.Stats.TasksOnTime,
		&e.Stats.TasksOverdue,
		&e.Stats.CompletionRate,
		&e.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *EmployeeRepository) collect(rows pgx.Rows) ([]model.Employee, error) {
	defer rows.Close()
	out := []model.Employee{}
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			r.logger.Error("Failed to scan employee", zap.Error(err))
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (r *EmployeeRepository) GetEmployee(ctx context.Context, id int) (*model.Employee, error) {
	e, err := scanEmployee(r.db.QueryRow(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "employee", id)
	}
	return e, nil
}

const appendPointsSQL = `
        INSERT INTO points_history (employee_id, task_id, delta, reason, created_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (employee_id, task_id) DO NOTHING
        RETURNING id`

// AppendHistoryAndAdjustPoints writes the history row, the points increment
// and the performance.points_awarded outbox event in one transaction.
func (r *EmployeeRepository) AppendHistoryAndAdjustPoints(ctx context.Context, entry model.PointsEntry) (bool, error) {
	r.logger.Debug("Appending points entry",
		zap.Int("employee_id", entry.EmployeeID),
		zap.Int("task_id", entry.TaskID),
		zap.Int("delta", entry.Delta),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var entryID int
	err = tx.QueryRow(ctx, appendPointsSQL, entry.EmployeeID, entry.TaskID, entry.Delta, entry.Reason, entry.Timestamp).Scan(&entryID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to append points entry", zap.Error(err), zap.Int("employee_id", entry.EmployeeID))
		return false, err
	}

	var points int
	err = tx.QueryRow(ctx, `
        UPDATE employees
        SET points = points + $2, updated_at = NOW()
        WHERE id = $1
        RETURNING points
    `, entry.EmployeeID, entry.Delta).Scan(&points)
	if err != nil {
		return false, notFound(err, "employee", entry.EmployeeID)
	}

	payload := mqcontracts.PointsAwardedPayload{
		EmployeeID: entry.EmployeeID,
		TaskID:     entry.TaskID,
		Delta:      entry.Delta,
		Reason:     entry.Reason,
		Points:     points,
		AwardedAt:  entry.Timestamp,
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "employee", int64(entry.EmployeeID), mqcontracts.RoutingPointsAwarded, payload); err != nil {
		r.logger.Error("Failed to insert performance.points_awarded to outbox", zap.Error(err))
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit points entry: %w", err)
	}
	r.logger.Info("Points entry appended",
		zap.Int("entry_id", entryID),
		zap.Int("employee_id", entry.EmployeeID),
		zap.Int("points", points),
	)
	return true, nil
}

func (r *EmployeeRepository) ListHistory(ctx context.Context, employeeID int) ([]model.PointsEntry, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, employee_id, task_id, delta, reason, created_at
        FROM points_history
        WHERE employee_id = $1
        ORDER BY created_at ASC, id ASC
    `, employeeID)
	if err != nil {
		r.logger.Error("Failed to query points history", zap.Error(err), zap.Int("employee_id", employeeID))
		return nil, err
	}
	defer rows.Close()

	var history []model.PointsEntry
	for rows.Next() {
		var h model.PointsEntry
		if err := rows.Scan(&h.ID, &h.EmployeeID, &h.TaskID, &h.Delta, &h.Reason, &h.Timestamp); err != nil {
			return nil, err
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

func (r *EmployeeRepository) SaveStatistics(ctx context.Context, employeeID int, stats model.Statistics) error {
	tag, err := r.db.Exec(ctx, `
        UPDATE employees
        SET tasks_completed = $2, tasks_on_time = $3, tasks_overdue = $4, completion_rate = $5,
            updated_at = NOW()
        WHERE id = $1
    `, employeeID, stats.TasksCompleted, stats.TasksOnTime, stats.TasksOverdue, stats.CompletionRate)
	if err != nil {
		r.logger.Error("Failed to save statistics", zap.Error(err), zap.Int("employee_id", employeeID))
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("employee %d: %w", employeeID, model.ErrNotFound)
	}
	return nil
}

func (r *EmployeeRepository) ListDirectReports(ctx context.Context, managerID int) ([]model.Employee, error) {
	rows, err := r.db.Query(ctx, `
        SELECT `+employeeColumns+`
        FROM employees
        WHERE manager_id = $1 AND is_active
        ORDER BY id
    `, managerID)
	if err != nil {
		r.logger.Error("Failed to list direct reports", zap.Error(err), zap.Int("manager_id", managerID))
		return nil, err
	}
	return r.collect(rows)
}

// Leaderboard orders by points only; equal points come back in whatever
// order the planner picks.
func (r *EmployeeRepository) Leaderboard(ctx context.Context, ids []int, limit, offset int) ([]model.Employee, int, error) {
	filter := `is_active`
	args := []any{limit, offset}
	if ids != nil {
		filter += ` AND id = ANY($3)`
		args = append(args, ids)
	}

	var total int
	countArgs := []any{}
	countFilter := `is_active`
	if ids != nil {
		countFilter += ` AND id = ANY($1)`
		countArgs = append(countArgs, ids)
	}
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE `+countFilter, countArgs...).Scan(&total); err != nil {
		r.logger.Error("Failed to count leaderboard", zap.Error(err))
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
        SELECT `+employeeColumns+`
        FROM employees
        WHERE `+filter+`
        ORDER BY points DESC
        LIMIT $1 OFFSET $2
    `, args...)
	if err != nil {
		r.logger.Error("Failed to query leaderboard", zap.Error(err))
		return nil, 0, err
	}
	employees, err := r.collect(rows)
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

func (r *EmployeeRepository) CountWithPointsAbove(ctx context.Context, points int) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM employees WHERE is_active AND points > $1`, points).Scan(&n)
	if err != nil {
		r.logger.Error("Failed to count employees above", zap.Error(err))
		return 0, err
	}
	return n, nil
}

// ListActiveIDs is used by the reconciler.
func (r *EmployeeRepository) ListActiveIDs(ctx context.Context) ([]int, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM employees WHERE is_active ORDER BY id`)
	if err != nil {
		r.logger.Error("Failed to list active employees", zap.Error(err))
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int])
}
