package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"workledger/internal/model"
)

// TaskStore is the slice of task persistence the engine needs.
type TaskStore interface {
	GetTask(ctx context.Context, id int) (*model.Task, error)
	ListByMilestone(ctx context.Context, milestoneID int) ([]model.Task, error)
	ListAssignedTo(ctx context.Context, employeeID int) ([]model.Task, error)
	// StampTransition sets started_at / completed_at for status if they are
	// still empty and returns the task as stored afterwards.
	StampTransition(ctx context.Context, taskID int, status model.TaskStatus, at time.Time) (*model.Task, error)
}

type MilestoneStore interface {
	GetMilestone(ctx context.Context, id int) (*model.Milestone, error)
	ListByProject(ctx context.Context, projectID int) ([]model.Milestone, error)
	// UpdateProgress writes progress only if the stored version still equals
	// expectedVersion; otherwise it returns model.ErrVersionConflict.
	UpdateProgress(ctx context.Context, id, progress, expectedVersion int) error
}

type ProjectStore interface {
	GetProject(ctx context.Context, id int) (*model.Project, error)
	// UpdateProgress is the version-checked counterpart of
	// MilestoneStore.UpdateProgress and returns the persisted project.
	UpdateProgress(ctx context.Context, id, progress, expectedVersion int) (*model.Project, error)
}

type IncentiveStore interface {
	FindPendingByProject(ctx context.Context, projectID int) ([]model.Incentive, error)
	GetIncentive(ctx context.Context, id int) (*model.Incentive, error)
	// AtomicMovePendingToCurrent moves amount from pending to current in one
	// conditional update guarded by pending == amount. A failed guard returns
	// model.ErrBalanceConflict.
	AtomicMovePendingToCurrent(ctx context.Context, incentiveID int, amount decimal.Decimal) error
}

type TransactionLedger interface {
	ExistsByDedupKey(ctx context.Context, key model.DedupKey) (bool, error)
	// InsertIfAbsent reports false when a transaction with the same dedup key
	// already exists.
	InsertIfAbsent(ctx context.Context, tx *model.Transaction) (bool, error)
}

type AdminDirectory interface {
	// FindFirstActive returns model.ErrNoActiveAdmin when nobody qualifies.
	FindFirstActive(ctx context.Context) (model.PrincipalRef, error)
}

type EmployeeStore interface {
	GetEmployee(ctx context.Context, id int) (*model.Employee, error)
	// AppendHistoryAndAdjustPoints appends entry and adds entry.Delta to the
	// employee's points atomically. It reports false if the employee was
	// already scored for entry.TaskID.
	AppendHistoryAndAdjustPoints(ctx context.Context, entry model.PointsEntry) (bool, error)
	ListHistory(ctx context.Context, employeeID int) ([]model.PointsEntry, error)
	SaveStatistics(ctx context.Context, employeeID int, stats model.Statistics) error
	ListDirectReports(ctx context.Context, managerID int) ([]model.Employee, error)
	// Leaderboard orders by points descending; ids == nil means everyone.
	Leaderboard(ctx context.Context, ids []int, limit, offset int) ([]model.Employee, int, error)
	CountWithPointsAbove(ctx context.Context, points int) (int, error)
}
