package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"workledger/internal/model"
	"workledger/internal/progress"
	"workledger/pkg/logger"
	"workledger/pkg/metrics"
)

// PerformanceLedger is the only writer of employee points and statistics.
type PerformanceLedger struct {
	employees EmployeeStore
	tasks     TaskStore
	logger    *zap.Logger
	now       func() time.Time
}

func NewPerformanceLedger(employees EmployeeStore, tasks TaskStore, logger *zap.Logger) *PerformanceLedger {
	return &PerformanceLedger{
		employees: employees,
		tasks:     tasks,
		logger:    logger,
		now:       time.Now,
	}
}

// AddEntry appends a history entry and applies its delta to the employee's
// points. It reports false when the employee was already scored for taskID.
func (l *PerformanceLedger) AddEntry(ctx context.Context, employeeID, taskID, delta int, reason string) (bool, error) {
	entry := model.PointsEntry{
		EmployeeID: employeeID,
		TaskID:     taskID,
		Delta:      delta,
		Reason:     reason,
		Timestamp:  l.now(),
	}
	inserted, err := l.employees.AppendHistoryAndAdjustPoints(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("append points entry: %w", err)
	}
	if !inserted {
		logger.WithTrace(ctx, l.logger).Debug("Task already scored for employee",
			zap.Int("employee_id", employeeID),
			zap.Int("task_id", taskID),
		)
		return false, nil
	}
	metrics.IncrementPointsAwarded(reason)
	return true, nil
}

// RecomputeStatistics recounts statistics from the employee's assigned tasks.
func (l *PerformanceLedger) RecomputeStatistics(ctx context.Context, employeeID int) (model.Statistics, error) {
	tasks, err := l.tasks.ListAssignedTo(ctx, employeeID)
	if err != nil {
		return model.Statistics{}, fmt.Errorf("list assigned tasks: %w", err)
	}
	stats := ComputeStatistics(tasks)
	if err := l.employees.SaveStatistics(ctx, employeeID, stats); err != nil {
		return model.Statistics{}, fmt.Errorf("save statistics: %w", err)
	}
	return stats, nil
}

// ComputeStatistics derives statistics from a set of assigned tasks. A
// completed task without a completion stamp counts as completed but is
// neither on time nor overdue.
func ComputeStatistics(tasks []model.Task) model.Statistics {
	var s model.Statistics
	for i := range tasks {
		t := &tasks[i]
		if !t.IsCompleted() {
			continue
		}
		s.TasksCompleted++
		if t.CompletedAt == nil {
			continue
		}
		if onTime(t) {
			s.TasksOnTime++
		} else {
			s.TasksOverdue++
		}
	}
	if s.TasksCompleted > 0 {
		s.CompletionRate = progress.Round(100 * float64(s.TasksOnTime) / float64(s.TasksCompleted))
	}
	return s
}
