package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	mqcontracts "workledger/contracts/mq"
	"workledger/internal/model"
	"workledger/pkg/outbox"
)

type IncentiveRepository struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewIncentiveRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *IncentiveRepository {
	return &IncentiveRepository{db: db, outboxRepo: outboxRepo, logger: logger}
}

func scanIncentive(row pgx.Row) (*model.Incentive, error) {
	var i model.Incentive
	if err := row.Scan(
		&i.ID,
		&i.EmployeeID,
		&i.ProjectID,
		&i.IsConversionBased,
		&i.PendingBalance,
		&i.CurrentBalance,
		&i.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *IncentiveRepository) FindPendingByProject(ctx context.Context, projectID int) ([]model.Incentive, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, employee_id, project_id, is_conversion_based, pending_balance, current_balance, updated_at
        FROM incentives
        WHERE project_id = $1 AND is_conversion_based AND pending_balance > 0
        ORDER BY id
    `, projectID)
	if err != nil {
		r.logger.Error("Failed to find pending incentives", zap.Error(err), zap.Int("project_id", projectID))
		return nil, err
	}
	defer rows.Close()

	var out []model.Incentive
	for rows.Next() {
		i, err := scanIncentive(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (r *IncentiveRepository) GetIncentive(ctx context.Context, id int) (*model.Incentive, error) {
	i, err := scanIncentive(r.db.QueryRow(ctx, `
        SELECT id, employee_id, project_id, is_conversion_based, pending_balance, current_balance, updated_at
        FROM incentives
        WHERE id = $1
    `, id))
	if err != nil {
		return nil, notFound(err, "incentive", id)
	}
	return i, nil
}

// movePendingSQL only matches while the pending balance is still the amount
// the caller read.
const movePendingSQL = `
        UPDATE incentives
        SET current_balance = current_balance + $2,
            pending_balance = 0,
            updated_at = NOW()
        WHERE id = $1 AND is_conversion_based AND pending_balance = $2
        RETURNING employee_id, project_id, current_balance, updated_at`

// AtomicMovePendingToCurrent performs the guarded move and queues an
// incentive.settled event in the same transaction.
func (r *IncentiveRepository) AtomicMovePendingToCurrent(ctx context.Context, incentiveID int, amount decimal.Decimal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		employeeID int
		projectID  *int
		current    decimal.Decimal
		settledAt  time.Time
	)
	err = tx.QueryRow(ctx, movePendingSQL, incentiveID, amount).Scan(&employeeID, &projectID, &current, &settledAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("incentive %d: %w", incentiveID, model.ErrBalanceConflict)
	}
	if err != nil {
		r.logger.Error("Failed to move pending incentive", zap.Error(err), zap.Int("incentive_id", incentiveID))
		return err
	}

	payload := mqcontracts.IncentiveSettledPayload{
		IncentiveID:    incentiveID,
		EmployeeID:     employeeID,
		Amount:         amount.String(),
		CurrentBalance: current.String(),
		SettledAt:      settledAt,
	}
	if projectID != nil {
		payload.ProjectID = *projectID
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "incentive", int64(incentiveID), mqcontracts.RoutingIncentiveSettled, payload); err != nil {
		r.logger.Error("Failed to insert incentive.settled to outbox", zap.Error(err))
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit incentive move: %w", err)
	}
	return nil
}
