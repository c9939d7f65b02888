// Package reconcile periodically re-derives aggregates that a second
// optimistic-lock conflict may have left stale, and redoes side effects a
// failed hook never wrote.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"workledger/internal/model"
)

var ErrAlreadyRunning = errors.New("reconciliation already running")

type ProjectSource interface {
	ListActiveIDs(ctx context.Context) ([]int, error)
	ListMilestoneIDs(ctx context.Context, projectID int) ([]int, error)
}

type EmployeeSource interface {
	ListActiveIDs(ctx context.Context) ([]int, error)
}

type Cascade interface {
	RecomputeMilestone(ctx context.Context, milestoneID int) (*model.Milestone, error)
	RecomputeProject(ctx context.Context, projectID int) (*model.Project, error)
}

type StatisticsRecomputer interface {
	RecomputeStatistics(ctx context.Context, employeeID int) (model.Statistics, error)
}

// Backlog lists ids whose side effect is still missing.
type Backlog interface {
	ListUnrecordedAdvanceIDs(ctx context.Context) ([]int, error)
	ListUnsettledIDs(ctx context.Context) ([]int, error)
	ListUnscoredTaskIDs(ctx context.Context) ([]int, error)
}

// SideEffects redoes one side effect by id. Implementations must be
// idempotent.
type SideEffects interface {
	RecordAdvance(ctx context.Context, projectID int) (bool, error)
	SettleProject(ctx context.Context, projectID int) (int, error)
	ScoreTask(ctx context.Context, taskID int) (int, error)
}

// Result summarises one pass.
type Result struct {
	Projects  int
	Employees int
	Recorded  int
	Settled   int
	Scored    int
	Failures  int
}

type Reconciler struct {
	projects  ProjectSource
	employees EmployeeSource
	cascade   Cascade
	stats     StatisticsRecomputer
	backlog   Backlog
	effects   SideEffects
	scheduler *cron.Cron
	timeout   time.Duration
	logger    *zap.Logger

	running sync.Mutex
}

func New(projects ProjectSource, employees EmployeeSource, cascade Cascade, stats StatisticsRecomputer, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		projects:  projects,
		employees: employees,
		cascade:   cascade,
		stats:     stats,
		scheduler: cron.New(cron.WithSeconds()),
		timeout:   30 * time.Minute,
		logger:    logger,
	}
}

// WithCatchUp makes every pass also redo missing advance transactions,
// settlements and task scores.
func (r *Reconciler) WithCatchUp(backlog Backlog, effects SideEffects) *Reconciler {
	r.backlog = backlog
	r.effects = effects
	return r
}

// Start schedules RunOnce on a six-field cron spec.
func (r *Reconciler) Start(schedule string) error {
	if _, err := r.scheduler.AddFunc(schedule, r.runScheduled); err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	r.scheduler.Start()
	r.logger.Info("Reconciler scheduled", zap.String("schedule", schedule))
	return nil
}

// Stop waits for a running pass to finish.
func (r *Reconciler) Stop() {
	<-r.scheduler.Stop().Done()
	r.logger.Info("Reconciler stopped")
}

func (r *Reconciler) runScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.RunOnce(ctx); err != nil && !errors.Is(err, ErrAlreadyRunning) {
		r.logger.Warn("Scheduled reconciliation finished with failures", zap.Error(err))
	}
}

// RunOnce recomputes progress of every active project and statistics of
// every active employee. Individual failures are collected, not fatal.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	if !r.running.TryLock() {
		return ErrAlreadyRunning
	}
	defer r.running.Unlock()

	start := time.Now()
	res, err := r.run(ctx)
	r.logger.Info("Reconciliation pass complete",
		zap.Int("projects", res.Projects),
		zap.Int("employees", res.Employees),
		zap.Int("recorded", res.Recorded),
		zap.Int("settled", res.Settled),
		zap.Int("scored", res.Scored),
		zap.Int("failures", res.Failures),
		zap.Duration("duration", time.Since(start)),
	)
	return err
}

func (r *Reconciler) run(ctx context.Context) (Result, error) {
	var (
		res  Result
		errs []error
	)

	projectIDs, err := r.projects.ListActiveIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list active projects: %w", err)
	}
	for _, id := range projectIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := r.reconcileProject(ctx, id); err != nil {
			res.Failures++
			errs = append(errs, err)
			continue
		}
		res.Projects++
	}

	// scoring changes statistics, so catch up before recomputing them
	if r.backlog != nil && r.effects != nil {
		if err := r.catchUp(ctx, &res); err != nil {
			errs = append(errs, err)
		}
	}

	employeeIDs, err := r.employees.ListActiveIDs(ctx)
	if err != nil {
		return res, errors.Join(append(errs, fmt.Errorf("list active employees: %w", err))...)
	}
	for _, id := range employeeIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, err := r.stats.RecomputeStatistics(ctx, id); err != nil {
			res.Failures++
			errs = append(errs, fmt.Errorf("employee %d: %w", id, err))
			continue
		}
		res.Employees++
	}

	return res, errors.Join(errs...)
}

func (r *Reconciler) reconcileProject(ctx context.Context, projectID int) error {
	milestoneIDs, err := r.projects.ListMilestoneIDs(ctx, projectID)
	if err != nil {
		return fmt.Errorf("project %d milestones: %w", projectID, err)
	}
	for _, mid := range milestoneIDs {
		if _, err := r.cascade.RecomputeMilestone(ctx, mid); err != nil {
			return fmt.Errorf("milestone %d: %w", mid, err)
		}
	}
	if _, err := r.cascade.RecomputeProject(ctx, projectID); err != nil {
		return fmt.Errorf("project %d: %w", projectID, err)
	}
	return nil
}

// catchUp redoes each kind of missing side effect. A failing id is counted
// and skipped; the next pass sees it again.
func (r *Reconciler) catchUp(ctx context.Context, res *Result) error {
	steps := []struct {
		name  string
		list  func(context.Context) ([]int, error)
		apply func(context.Context, int) (int, error)
		count *int
	}{
		{"advance", r.backlog.ListUnrecordedAdvanceIDs, func(ctx context.Context, id int) (int, error) {
			recorded, err := r.effects.RecordAdvance(ctx, id)
			if recorded {
				return 1, err
			}
			return 0, err
		}, &res.Recorded},
		{"settlement", r.backlog.ListUnsettledIDs, r.effects.SettleProject, &res.Settled},
		{"score", r.backlog.ListUnscoredTaskIDs, r.effects.ScoreTask, &res.Scored},
	}

	var errs []error
	for _, step := range steps {
		ids, err := step.list(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("list %s backlog: %w", step.name, err))
			continue
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return errors.Join(append(errs, err)...)
			}
			n, err := step.apply(ctx, id)
			*step.count += n
			if err != nil {
				res.Failures++
				errs = append(errs, fmt.Errorf("%s %d: %w", step.name, id, err))
			}
		}
	}
	return errors.Join(errs...)
}
