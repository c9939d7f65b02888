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

const settlementAttempts = 2

// SettlementTrigger releases conversion-based incentives once their project
// is completed and fully paid.
type SettlementTrigger struct {
	incentives IncentiveStore
	logger     *zap.Logger
}

func NewSettlementTrigger(incentives IncentiveStore, logger *zap.Logger) *SettlementTrigger {
	return &SettlementTrigger{incentives: incentives, logger: logger}
}

// OnProjectPersisted runs after every successful project write. It returns
// the number of incentives moved by this call.
func (s *SettlementTrigger) OnProjectPersisted(ctx context.Context, project *model.Project) int {
	moved, _ := s.Settle(ctx, project)
	return moved
}

// Settle moves every pending conversion-based incentive of a settled
// project. Each incentive is attempted even if another fails; the failures
// are logged and returned joined.
func (s *SettlementTrigger) Settle(ctx context.Context, project *model.Project) (int, error) {
	if project == nil || !project.ReadyForSettlement() {
		return 0, nil
	}

	ctx, span := otel.HookSpan(ctx, "settle_project", attribute.Int("project_id", project.ID))
	var spanErr error
	defer func() { otel.EndSpan(span, spanErr) }()

	log := logger.WithTrace(ctx, s.logger).With(zap.Int("project_id", project.ID))

	pending, err := s.incentives.FindPendingByProject(ctx, project.ID)
	if err != nil {
		spanErr = err
		metrics.IncrementSettlement("error")
		log.Error("Failed to load pending incentives", zap.Error(err))
		return 0, fmt.Errorf("load pending incentives: %w", err)
	}

	var (
		moved int
		errs  []error
	)
	for i := range pending {
		ok, err := s.settle(ctx, log, pending[i])
		if err != nil {
			errs = append(errs, fmt.Errorf("incentive %d: %w", pending[i].ID, err))
			continue
		}
		if ok {
			moved++
		}
	}
	if moved > 0 {
		log.Info("Incentives settled", zap.Int("moved", moved), zap.Int("candidates", len(pending)))
	}
	spanErr = errors.Join(errs...)
	return moved, spanErr
}

// settle moves one incentive's pending balance.
func (s *SettlementTrigger) settle(ctx context.Context, log *zap.Logger, inc model.Incentive) (bool, error) {
	log = log.With(zap.Int("incentive_id", inc.ID), zap.Int("employee_id", inc.EmployeeID))
	amount := inc.PendingBalance

	for attempt := 1; attempt <= settlementAttempts; attempt++ {
		if !inc.IsConversionBased || !amount.IsPositive() {
			metrics.IncrementSettlement("already_settled")
			return false, nil
		}

		err := s.incentives.AtomicMovePendingToCurrent(ctx, inc.ID, amount)
		if err == nil {
			metrics.IncrementSettlement("moved")
			log.Info("Pending incentive moved to current", zap.String("amount", amount.String()))
			return true, nil
		}
		if !errors.Is(err, model.ErrBalanceConflict) {
			metrics.IncrementSettlement("error")
			log.Error("Failed to move pending incentive", zap.Error(err))
			return false, err
		}

		fresh, err := s.incentives.GetIncentive(ctx, inc.ID)
		if err != nil {
			metrics.IncrementSettlement("error")
			log.Error("Failed to re-read incentive after conflict", zap.Error(err))
			return false, err
		}
		inc = *fresh
		amount = fresh.PendingBalance
	}

	metrics.IncrementSettlement("conflict")
	log.Warn("Incentive settlement gave up after repeated conflicts")
	return false, model.ErrBalanceConflict
}
