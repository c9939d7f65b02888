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

type TransactionRepository struct {
	db         *pgxpool.Pool
	outboxRepo *outbox.Repository
	logger     *zap.Logger
}

func NewTransactionRepository(db *pgxpool.Pool, outboxRepo *outbox.Repository, logger *zap.Logger) *TransactionRepository {
	return &TransactionRepository{db: db, outboxRepo: outboxRepo, logger: logger}
}

func (r *TransactionRepository) ExistsByDedupKey(ctx context.Context, key model.DedupKey) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM transactions WHERE source_type = $1 AND project_id = $2)
    `, key.SourceType, key.ProjectID).Scan(&exists)
	if err != nil {
		r.logger.Error("Failed to check transaction dedup key", zap.Error(err))
		return false, err
	}
	return exists, nil
}

const insertTransactionSQL = `
        INSERT INTO transactions (type, amount, category, description, transaction_date,
                                  source_type, project_id, recorded_by_kind, recorded_by_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (source_type, project_id) DO NOTHING
        RETURNING id, created_at`

// InsertIfAbsent relies on the unique (source_type, project_id) index, so
// concurrent callers produce exactly one row.
func (r *TransactionRepository) InsertIfAbsent(ctx context.Context, t *model.Transaction) (bool, error) {
	r.logger.Debug("Inserting transaction",
		zap.String("source_type", t.Key.SourceType),
		zap.Int("project_id", t.Key.ProjectID),
		zap.String("amount", t.Amount.String()),
	)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, insertTransactionSQL,
		t.Type,
		t.Amount,
		t.Category,
		t.Description,
		t.TransactionDate,
		t.Key.SourceType,
		t.Key.ProjectID,
		t.RecordedBy.Kind,
		t.RecordedBy.ID,
	).Scan(&t.ID, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		r.logger.Error("Failed to insert transaction", zap.Error(err), zap.Int("project_id", t.Key.ProjectID))
		return false, err
	}

	payload := mqcontracts.TransactionRecordedPayload{
		TransactionID:   t.ID,
		ProjectID:       t.Key.ProjectID,
		SourceType:      t.Key.SourceType,
		Category:        t.Category,
		Amount:          t.Amount.String(),
		TransactionDate: t.TransactionDate,
		RecordedBy:      t.RecordedBy.String(),
	}
	if err := outbox.InsertEventInTx(ctx, tx, r.outboxRepo, "transaction", int64(t.ID), mqcontracts.RoutingTransactionRecorded, payload); err != nil {
		r.logger.Error("Failed to insert transaction.recorded to outbox", zap.Error(err))
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit transaction insert: %w", err)
	}
	r.logger.Info("Transaction inserted successfully", zap.Int("transaction_id", t.ID))
	return true, nil
}
