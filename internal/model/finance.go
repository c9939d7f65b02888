package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceProjectConversion = "project_conversion"
	CategoryAdvancePayment  = "Advance Payment"
)

type Incentive struct {
	ID                int             `json:"id"`
	EmployeeID        int             `json:"employee_id"`
	ProjectID         *int            `json:"project_id,omitempty"`
	IsConversionBased bool            `json:"is_conversion_based"`
	PendingBalance    decimal.Decimal `json:"pending_balance"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type TransactionType string

const TransactionIncome TransactionType = "income"

// DedupKey identifies the logical event a transaction was recorded for.
type DedupKey struct {
	SourceType string `json:"source_type"`
	ProjectID  int    `json:"project_id"`
}

type Transaction struct {
	ID              int             `json:"id"`
	Type            TransactionType `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	Category        string          `json:"category"`
	Description     string          `json:"description"`
	TransactionDate time.Time       `json:"transaction_date"`
	Key             DedupKey        `json:"dedup_key"`
	RecordedBy      PrincipalRef    `json:"recorded_by"`
	CreatedAt       time.Time       `json:"created_at"`
}
