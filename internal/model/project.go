package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on_hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

// Financials 项目财务汇总
type Financials struct {
	TotalCost       decimal.Decimal `json:"total_cost"`
	AdvanceReceived decimal.Decimal `json:"advance_received"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
}

// Normalize re-derives RemainingAmount from TotalCost and AdvanceReceived.
func (f *Financials) Normalize() {
	f.RemainingAmount = f.TotalCost.Sub(f.AdvanceReceived)
}

// FullyPaid reports whether nothing remains to be collected.
func (f Financials) FullyPaid() bool {
	return f.RemainingAmount.IsZero()
}

type Project struct {
	ID         int           `json:"id"`
	Name       string        `json:"name"`
	Status     ProjectStatus `json:"status"`
	Progress   int           `json:"progress"`
	Financials Financials    `json:"financials"`
	Version    int           `json:"version"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// ReadyForSettlement is the condition under which pending incentives
// tied to this project may be released.
func (p *Project) ReadyForSettlement() bool {
	return p.Status == ProjectCompleted && p.Financials.FullyPaid()
}

type Milestone struct {
	ID         int       `json:"id"`
	ProjectID  int       `json:"project_id"`
	Title      string    `json:"title"`
	PhaseOrder int       `json:"phase_order"`
	Progress   int       `json:"progress"`
	Version    int       `json:"version"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
