package engine

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"workledger/internal/model"
	"workledger/pkg/logger"
	"workledger/pkg/metrics"
	"workledger/pkg/otel"
)

// TransactionRecorder books the advance payment of a newly created project
// as an income transaction, at most once per project.
type TransactionRecorder struct {
	ledger TransactionLedger
	admins AdminDirectory
	logger *zap.Logger
}

func NewTransactionRecorder(ledger TransactionLedger, admins AdminDirectory, logger *zap.Logger) *TransactionRecorder {
	return &TransactionRecorder{ledger: ledger, admins: admins, logger: logger}
}

// OnProjectCreated reports whether a new transaction was written. Failures
// are logged; Record is the variant that returns them.
func (r *TransactionRecorder) OnProjectCreated(ctx context.Context, project *model.Project) bool {
	recorded, err := r.Record(ctx, project)
	if err == nil {
		return recorded
	}
	log := logger.WithTrace(ctx, r.logger).With(zap.Int("project_id", project.ID))
	if errors.Is(err, model.ErrNoActiveAdmin) {
		log.Warn("No active admin to record advance payment, skipping")
		return false
	}
	log.Error("Failed to record advance transaction", zap.Error(err))
	return false
}

// Record books the advance payment unless it already exists. It is safe to
// call repeatedly for the same project.
func (r *TransactionRecorder) Record(ctx context.Context, project *model.Project) (bool, error) {
	if project == nil || !project.Financials.AdvanceReceived.IsPositive() {
		return false, nil
	}

	ctx, span := otel.HookSpan(ctx, "record_advance", attribute.Int("project_id", project.ID))
	var spanErr error
	defer func() { otel.EndSpan(span, spanErr) }()

	log := logger.WithTrace(ctx, r.logger).With(zap.Int("project_id", project.ID))
	key := model.DedupKey{SourceType: model.SourceProjectConversion, ProjectID: project.ID}

	exists, err := r.ledger.ExistsByDedupKey(ctx, key)
	if err != nil {
		spanErr = err
		metrics.IncrementTransactionRecord("error")
		return false, fmt.Errorf("check existing advance transaction: %w", err)
	}
	if exists {
		metrics.IncrementTransactionRecord("duplicate")
		log.Debug("Advance transaction already recorded")
		return false, nil
	}

	recorder, err := r.admins.FindFirstActive(ctx)
	if err != nil {
		if errors.Is(err, model.ErrNoActiveAdmin) {
			metrics.IncrementTransactionRecord("no_admin")
			return false, err
		}
		spanErr = err
		metrics.IncrementTransactionRecord("error")
		return false, fmt.Errorf("resolve recording admin: %w", err)
	}

	tx := &model.Transaction{
		Type:            model.TransactionIncome,
		Amount:          project.Financials.AdvanceReceived,
		Category:        model.CategoryAdvancePayment,
		Description:     fmt.Sprintf("Advance payment received for project %s", project.Name),
		TransactionDate: project.CreatedAt,
		Key:             key,
		RecordedBy:      recorder,
	}

	inserted, err := r.ledger.InsertIfAbsent(ctx, tx)
	if err != nil {
		spanErr = err
		metrics.IncrementTransactionRecord("error")
		return false, fmt.Errorf("insert advance transaction: %w", err)
	}
	if !inserted {
		// a concurrent save got there first
		metrics.IncrementTransactionRecord("duplicate")
		log.Debug("Advance transaction recorded concurrently")
		return false, nil
	}

	metrics.IncrementTransactionRecord("recorded")
	log.Info("Advance payment recorded",
		zap.Int("transaction_id", tx.ID),
		zap.String("amount", tx.Amount.String()),
		zap.String("recorded_by", recorder.String()),
	)
	return true, nil
}
