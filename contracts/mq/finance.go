package mq

import "time"

const (
	RoutingIncentiveSettled    = "incentive.settled"
	RoutingTransactionRecorded = "transaction.recorded"
	RoutingPointsAwarded       = "performance.points_awarded"
)

type IncentiveSettledPayload struct {
	IncentiveID    int       `json:"incentive_id"`
	EmployeeID     int       `json:"employee_id"`
	ProjectID      int       `json:"project_id"`
	Amount         string    `json:"amount"`
	CurrentBalance string    `json:"current_balance"`
	SettledAt      time.Time `json:"settled_at"`
}

type TransactionRecordedPayload struct {
	TransactionID   int       `json:"transaction_id"`
	ProjectID       int       `json:"project_id"`
	SourceType      string    `json:"source_type"`
	Category        string    `json:"category"`
	Amount          string    `json:"amount"`
	TransactionDate time.Time `json:"transaction_date"`
	RecordedBy      string    `json:"recorded_by"`
}

type PointsAwardedPayload struct {
	EmployeeID int       `json:"employee_id"`
	TaskID     int       `json:"task_id"`
	Delta      int       `json:"delta"`
	Reason     string    `json:"reason"`
	Points     int       `json:"points"`
	AwardedAt  time.Time `json:"awarded_at"`
}
