package engine

import (
	"errors"
	"testing"
	"time"

	"workledger/internal/model"
)

func TestCalculatePoints(t *testing.T) {
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name      string
		task      *model.Task
		wantDelta int
		wantErr   bool
	}{
		{"early", &model.Task{Status: model.TaskCompleted, DueDate: due, CompletedAt: timePtr(due.AddDate(0, 0, -2))}, 1, false},
		{"exactly due", &model.Task{Status: model.TaskCompleted, DueDate: due, CompletedAt: timePtr(due)}, 1, false},
		{"late", &model.Task{Status: model.TaskCompleted, DueDate: due, CompletedAt: timePtr(due.AddDate(0, 0, 2))}, -1, false},
		{"not completed", &model.Task{Status: model.TaskTesting, DueDate: due}, 0, true},
		{"missing stamp", &model.Task{Status: model.TaskCompleted, DueDate: due}, 0, true},
		{"nil task", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			score, err := ScoringEngine{}.CalculatePoints(tt.task)
			if tt.wantErr {
				if !errors.Is(err, model.ErrInvalid) {
					t.Fatalf("err = %v, want ErrInvalid", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if score.Delta != tt.wantDelta {
				t.Errorf("delta = %d, want %d", score.Delta, tt.wantDelta)
			}
			wantReason := ReasonOnTime
			if tt.wantDelta < 0 {
				wantReason = ReasonOverdue
			}
			if score.Reason != wantReason {
				t.Errorf("reason = %q, want %q", score.Reason, wantReason)
			}
		})
	}
}
