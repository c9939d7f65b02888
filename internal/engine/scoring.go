package engine

import (
	"fmt"

	"workledger/internal/model"
)

const (
	ReasonOnTime  = "on-time completion"
	ReasonOverdue = "overdue completion"
)

// Score is the points outcome of one completed task.
type Score struct {
	Delta  int
	Reason string
}

// ScoringEngine maps a completed task to a points delta.
type ScoringEngine struct{}

// CalculatePoints requires a completed task with its completion stamp.
func (ScoringEngine) CalculatePoints(task *model.Task) (Score, error) {
	if task == nil {
		return Score{}, fmt.Errorf("%w: nil task", model.ErrInvalid)
	}
	if !task.IsCompleted() || task.CompletedAt == nil {
		return Score{}, fmt.Errorf("%w: task %d is not completed", model.ErrInvalid, task.ID)
	}
	if onTime(task) {
		return Score{Delta: 1, Reason: ReasonOnTime}, nil
	}
	return Score{Delta: -1, Reason: ReasonOverdue}, nil
}

func onTime(task *model.Task) bool {
	return !task.CompletedAt.After(task.DueDate)
}
