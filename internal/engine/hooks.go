// Package engine keeps derived progress, financial side effects and the
// performance ledger consistent with task and project writes.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"workledger/internal/model"
	"workledger/pkg/logger"
	"workledger/pkg/otel"
)

// Stores groups the persistence collaborators of an Engine.
type Stores struct {
	Tasks        TaskStore
	Milestones   MilestoneStore
	Projects     ProjectStore
	Incentives   IncentiveStore
	Transactions TransactionLedger
	Admins       AdminDirectory
	Employees    EmployeeStore
}

// Engine exposes the typed hooks the CRUD layer calls after a successful
// write. None of them returns an error: failures are logged and counted.
type Engine struct {
	tasks      TaskStore
	projects   ProjectStore
	cascade    *CascadeController
	settlement *SettlementTrigger
	recorder   *TransactionRecorder
	scoring    ScoringEngine
	ledger     *PerformanceLedger
	ranking    *RankingService
	logger     *zap.Logger
}

func New(stores Stores, logger *zap.Logger) *Engine {
	e := &Engine{
		tasks:      stores.Tasks,
		projects:   stores.Projects,
		cascade:    NewCascadeController(stores.Tasks, stores.Milestones, stores.Projects, logger),
		settlement: NewSettlementTrigger(stores.Incentives, logger),
		recorder:   NewTransactionRecorder(stores.Transactions, stores.Admins, logger),
		ledger:     NewPerformanceLedger(stores.Employees, stores.Tasks, logger),
		ranking:    NewRankingService(stores.Employees, logger),
		logger:     logger,
	}
	e.cascade.OnProjectPersisted(e.OnProjectPersisted)
	return e
}

// WithClock replaces the time source of every component.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.cascade.now = now
	e.ledger.now = now
	e.ranking.now = now
	return e
}

func (e *Engine) Cascade() *CascadeController { return e.cascade }
func (e *Engine) Ledger() *PerformanceLedger  { return e.ledger }
func (e *Engine) Ranking() *RankingService    { return e.ranking }

// OnTaskStatusChanged propagates a persisted status write. Entry into
// completed additionally scores every assignee.
func (e *Engine) OnTaskStatusChanged(ctx context.Context, change model.TaskStatusChange) {
	ctx, span := otel.HookSpan(ctx, "task_status_changed",
		attribute.Int("task_id", change.TaskID),
		attribute.String("to_status", string(change.ToStatus)),
	)
	defer otel.EndSpan(span, nil)

	if !change.ToStatus.Valid() {
		logger.WithTrace(ctx, e.logger).Warn("Ignoring status change with unknown status",
			zap.Int("task_id", change.TaskID),
			zap.String("to_status", string(change.ToStatus)),
		)
		return
	}

	task := e.cascade.OnTaskStatusChanged(ctx, change)
	if task == nil || !change.EntersCompleted() {
		return
	}
	e.scoreCompletion(ctx, task)
}

// OnProjectPersisted runs after every project write.
func (e *Engine) OnProjectPersisted(ctx context.Context, project *model.Project) {
	e.settlement.OnProjectPersisted(ctx, project)
}

// OnProjectCreated runs once after a project insert. The insert is also a
// persist, so settlement is evaluated too.
func (e *Engine) OnProjectCreated(ctx context.Context, project *model.Project) {
	e.recorder.OnProjectCreated(ctx, project)
	e.settlement.OnProjectPersisted(ctx, project)
}

func (e *Engine) scoreCompletion(ctx context.Context, task *model.Task) {
	if _, err := e.score(ctx, task); err != nil {
		logger.WithTrace(ctx, e.logger).Error("Failed to score completed task",
			zap.Int("task_id", task.ID),
			zap.Error(err),
		)
	}
}

// score appends one entry per assignee that has none for this task yet and
// refreshes their statistics. It returns how many entries were appended.
func (e *Engine) score(ctx context.Context, task *model.Task) (int, error) {
	log := logger.WithTrace(ctx, e.logger).With(zap.Int("task_id", task.ID))

	score, err := e.scoring.CalculatePoints(task)
	if err != nil {
		return 0, err
	}

	var (
		awarded int
		errs    []error
	)
	for _, employeeID := range task.Assignees {
		ok, err := e.ledger.AddEntry(ctx, employeeID, task.ID, score.Delta, score.Reason)
		if err != nil {
			errs = append(errs, fmt.Errorf("employee %d: %w", employeeID, err))
			continue
		}
		if _, err := e.ledger.RecomputeStatistics(ctx, employeeID); err != nil {
			errs = append(errs, fmt.Errorf("employee %d: %w", employeeID, err))
		}
		if ok {
			awarded++
			log.Info("Points awarded",
				zap.Int("employee_id", employeeID),
				zap.Int("delta", score.Delta),
				zap.String("reason", score.Reason),
			)
		}
	}
	return awarded, errors.Join(errs...)
}
