package model

import "time"

type Statistics struct {
	TasksCompleted int `json:"tasks_completed"`
	TasksOnTime    int `json:"tasks_on_time"`
	TasksOverdue   int `json:"tasks_overdue"`
	CompletionRate int `json:"completion_rate"`
}

type Employee struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Email      string     `json:"email"`
	ManagerID  *int       `json:"manager_id,omitempty"`
	IsTeamLead bool       `json:"is_team_lead"`
	IsActive   bool       `json:"is_active"`
	Points     int        `json:"points"`
	Stats      Statistics `json:"statistics"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PointsEntry is one immutable row of an employee's points history.
type PointsEntry struct {
	ID         int       `json:"id"`
	EmployeeID int       `json:"employee_id"`
	TaskID     int       `json:"task_id"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	Timestamp  time.Time `json:"timestamp"`
}
