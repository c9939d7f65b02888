package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"workledger/internal/model"
)

func newTestLedger(t *testing.T, db *memDB) *PerformanceLedger {
	t.Helper()
	l := NewPerformanceLedger(fakeEmployees{db}, fakeTasks{db}, zaptest.NewLogger(t))
	l.now = func() time.Time { return testNow }
	return l
}

func TestAddEntryNetsToZero(t *testing.T) {
	db := newMemDB()
	db.addEmployee(model.Employee{ID: 1, IsActive: true})
	l := newTestLedger(t, db)
	ctx := context.Background()

	if ok, err := l.AddEntry(ctx, 1, 10, 1, ReasonOnTime); err != nil || !ok {
		t.Fatalf("first entry: ok=%v err=%v", ok, err)
	}
	if ok, err := l.AddEntry(ctx, 1, 11, -1, ReasonOverdue); err != nil || !ok {
		t.Fatalf("second entry: ok=%v err=%v", ok, err)
	}

	if got := db.employee(1).Points; got != 0 {
		t.Fatalf("points = %d, want 0", got)
	}
	if got := len(db.historyOf(1)); got != 2 {
		t.Fatalf("history entries = %d, want 2", got)
	}
}

func TestAddEntryOncePerTask(t *testing.T) {
	db := newMemDB()
	db.addEmployee(model.Employee{ID: 1, IsActive: true})
	l := newTestLedger(t, db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := l.AddEntry(ctx, 1, 10, 1, ReasonOnTime); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}
	if got := db.employee(1).Points; got != 1 {
		t.Fatalf("points = %d, want 1", got)
	}
}

func TestPointsEqualHistorySum(t *testing.T) {
	db := newMemDB()
	db.addEmployee(model.Employee{ID: 1, IsActive: true})
	l := newTestLedger(t, db)
	ctx := context.Background()

	deltas := []int{1, 1, -1, 1, -1, -1, 1, 1}
	for i, d := range deltas {
		if _, err := l.AddEntry(ctx, 1, i+1, d, "x"); err != nil {
			t.Fatalf("AddEntry: %v", err)
		}
	}
	sum := 0
	for _, h := range db.historyOf(1) {
		sum += h.Delta
	}
	if got := db.employee(1).Points; got != sum {
		t.Fatalf("points = %d, history sum = %d", got, sum)
	}
}

func TestComputeStatistics(t *testing.T) {
	due := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	early := timePtr(due.Add(-time.Hour))
	late := timePtr(due.Add(time.Hour))

	tests := []struct {
		name  string
		tasks []model.Task
		want  model.Statistics
	}{
		{"none", nil, model.Statistics{}},
		{"only open", []model.Task{{Status: model.TaskInProgress, DueDate: due}}, model.Statistics{}},
		{
			"two of three on time",
			[]model.Task{
				{Status: model.TaskCompleted, DueDate: due, CompletedAt: early},
				{Status: model.TaskCompleted, DueDate: due, CompletedAt: early},
				{Status: model.TaskCompleted, DueDate: due, CompletedAt: late},
				{Status: model.TaskPending, DueDate: due},
			},
			model.Statistics{TasksCompleted: 3, TasksOnTime: 2, TasksOverdue: 1, CompletionRate: 67},
		},
		{
			"half rounds up",
			[]model.Task{
				{Status: model.TaskCompleted, DueDate: due, CompletedAt: early},
				{Status: model.TaskCompleted, DueDate: due, CompletedAt: late},
			},
			model.Statistics{TasksCompleted: 2, TasksOnTime: 1, TasksOverdue: 1, CompletionRate: 50},
		},
		{
			"legacy completion without stamp",
			[]model.Task{{Status: model.TaskCompleted, DueDate: due}},
			model.Statistics{TasksCompleted: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ComputeStatistics(tt.tasks); got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRecomputeStatisticsPersists(t *testing.T) {
	db := newMemDB()
	db.addEmployee(model.Employee{ID: 1, IsActive: true, Stats: model.Statistics{TasksCompleted: 99}})
	db.addTask(model.Task{ID: 1, Status: model.TaskCompleted, DueDate: testNow, CompletedAt: timePtr(testNow), Assignees: []int{1}})
	db.addTask(model.Task{ID: 2, Status: model.TaskCompleted, DueDate: testNow, CompletedAt: timePtr(testNow), Assignees: []int{2}})

	stats, err := newTestLedger(t, db).RecomputeStatistics(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecomputeStatistics: %v", err)
	}
	want := model.Statistics{TasksCompleted: 1, TasksOnTime: 1, CompletionRate: 100}
	if stats != want || db.employee(1).Stats != want {
		t.Fatalf("stats = %+v stored %+v, want %+v", stats, db.employee(1).Stats, want)
	}
}
