package model

import "time"

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskTesting    TaskStatus = "testing"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the known task statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskTesting, TaskCompleted, TaskCancelled:
		return true
	}
	return false
}

type Task struct {
	ID          int        `json:"id"`
	MilestoneID int        `json:"milestone_id"`
	Title       string     `json:"title"`
	Status      TaskStatus `json:"status"`
	DueDate     time.Time  `json:"due_date"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Assignees   []int      `json:"assignees"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IsCompleted reports whether the task counts as done for progress and scoring.
func (t *Task) IsCompleted() bool {
	return t.Status == TaskCompleted
}

// TaskStatusChange is what the CRUD layer hands over after it has
// persisted a write to a task's status field.
type TaskStatusChange struct {
	TaskID     int        `json:"task_id"`
	FromStatus TaskStatus `json:"from_status"`
	ToStatus   TaskStatus `json:"to_status"`
	ChangedAt  time.Time  `json:"changed_at"`
}

// EntersCompleted is true only on the transition into completed.
func (c TaskStatusChange) EntersCompleted() bool {
	return c.ToStatus == TaskCompleted && c.FromStatus != TaskCompleted
}
