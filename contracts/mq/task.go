package mq

import "time"

const (
	RoutingTaskStatusChanged = "task.status_changed"
	RoutingProjectSaved      = "project.saved"
)

// TaskStatusChangedPayload 由 CRUD 层在任务状态写入成功后发布
type TaskStatusChangedPayload struct {
	EventID    string    `json:"event_id"`
	TaskID     int       `json:"task_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ChangedAt  time.Time `json:"changed_at"`
	TraceID    string    `json:"trace_id,omitempty"`
}

// ProjectSavedPayload 项目保存事件，Created 为 true 表示首次创建
type ProjectSavedPayload struct {
	EventID   string `json:"event_id"`
	ProjectID int    `json:"project_id"`
	Created   bool   `json:"created"`
	TraceID   string `json:"trace_id,omitempty"`
}
