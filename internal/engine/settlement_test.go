package engine

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap/zaptest"

	"workledger/internal/model"
)

func readyProject(t *testing.T) *model.Project {
	t.Helper()
	p := &model.Project{ID: 1, Name: "Apollo", Status: model.ProjectCompleted, Version: 1}
	p.Financials.TotalCost = money(t, "5000")
	p.Financials.AdvanceReceived = money(t, "5000")
	p.Financials.Normalize()
	return p
}

func TestSettlementMovesPendingOnce(t *testing.T) {
	db := newMemDB()
	db.addIncentive(model.Incentive{
		ID: 1, EmployeeID: 7, ProjectID: intPtr(1), IsConversionBased: true,
		PendingBalance: money(t, "1200"), CurrentBalance: money(t, "300"),
	})
	s := NewSettlementTrigger(fakeIncentives{db}, zaptest.NewLogger(t))
	ctx := context.Background()

	if moved := s.OnProjectPersisted(ctx, readyProject(t)); moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	inc := db.incentive(1)
	if !inc.PendingBalance.IsZero() || !inc.CurrentBalance.Equal(money(t, "1500")) {
		t.Fatalf("balances = %s/%s, want 0/1500", inc.PendingBalance, inc.CurrentBalance)
	}

	if moved := s.OnProjectPersisted(ctx, readyProject(t)); moved != 0 {
		t.Fatalf("second run moved = %d, want 0", moved)
	}
	if got := db.incentive(1).CurrentBalance; !got.Equal(money(t, "1500")) {
		t.Fatalf("current after second run = %s, want 1500", got)
	}
}

func TestSettlementRequiresCompletedAndPaid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *model.Project)
	}{
		{"still active", func(p *model.Project) { p.Status = model.ProjectActive }},
		{"balance outstanding", func(p *model.Project) {
			p.Financials.AdvanceReceived = decimal.NewFromInt(4000)
			p.Financials.Normalize()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := newMemDB()
			db.addIncentive(model.Incentive{
				ID: 1, ProjectID: intPtr(1), IsConversionBased: true, PendingBalance: money(t, "100"),
			})
			p := readyProject(t)
			tt.mutate(p)

			s := NewSettlementTrigger(fakeIncentives{db}, zaptest.NewLogger(t))
			if moved := s.OnProjectPersisted(context.Background(), p); moved != 0 {
				t.Fatalf("moved = %d, want 0", moved)
			}
			if got := db.incentive(1).PendingBalance; !got.Equal(money(t, "100")) {
				t.Fatalf("pending = %s, want 100", got)
			}
		})
	}
}

func TestSettlementSkipsOtherIncentives(t *testing.T) {
	db := newMemDB()
	db.addIncentive(model.Incentive{ID: 1, ProjectID: intPtr(1), IsConversionBased: false, PendingBalance: money(t, "50")})
	db.addIncentive(model.Incentive{ID: 2, ProjectID: intPtr(2), IsConversionBased: true, PendingBalance: money(t, "60")})
	db.addIncentive(model.Incentive{ID: 3, ProjectID: intPtr(1), IsConversionBased: true, PendingBalance: money(t, "70")})

	s := NewSettlementTrigger(fakeIncentives{db}, zaptest.NewLogger(t))
	if moved := s.OnProjectPersisted(context.Background(), readyProject(t)); moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	if !db.incentive(1).PendingBalance.Equal(money(t, "50")) || !db.incentive(2).PendingBalance.Equal(money(t, "60")) {
		t.Fatal("unrelated incentives were touched")
	}
	if !db.incentive(3).CurrentBalance.Equal(money(t, "70")) {
		t.Fatalf("incentive 3 current = %s, want 70", db.incentive(3).CurrentBalance)
	}
}

func TestSettlementRetriesWithFreshBalance(t *testing.T) {
	db := newMemDB()
	db.addIncentive(model.Incentive{ID: 1, ProjectID: intPtr(1), IsConversionBased: true, PendingBalance: money(t, "100")})

	// pending grows between the read and the conditional move
	raced := false
	db.beforeMove = func(id int) {
		if raced {
			return
		}
		raced = true
		db.mu.Lock()
		db.incentives[id].PendingBalance = decimal.NewFromInt(150)
		db.mu.Unlock()
	}

	s := NewSettlementTrigger(fakeIncentives{db}, zaptest.NewLogger(t))
	if moved := s.OnProjectPersisted(context.Background(), readyProject(t)); moved != 1 {
		t.Fatalf("moved = %d, want 1", moved)
	}
	inc := db.incentive(1)
	if !inc.PendingBalance.IsZero() || !inc.CurrentBalance.Equal(money(t, "150")) {
		t.Fatalf("balances = %s/%s, want 0/150", inc.PendingBalance, inc.CurrentBalance)
	}
}

func TestSettlementConcurrentMoveCountsOnce(t *testing.T) {
	db := newMemDB()
	db.addIncentive(model.Incentive{ID: 1, ProjectID: intPtr(1), IsConversionBased: true, PendingBalance: money(t, "100")})

	// another settlement moves the balance first
	db.beforeMove = func(id int) {
		db.beforeMove = nil
		db.mu.Lock()
		db.incentives[id].CurrentBalance = decimal.NewFromInt(100)
		db.incentives[id].PendingBalance = decimal.Zero
		db.mu.Unlock()
	}

	s := NewSettlementTrigger(fakeIncentives{db}, zaptest.NewLogger(t))
	if moved := s.OnProjectPersisted(context.Background(), readyProject(t)); moved != 0 {
		t.Fatalf("moved = %d, want 0", moved)
	}
	if got := db.incentive(1).CurrentBalance; !got.Equal(money(t, "100")) {
		t.Fatalf("current = %s, want 100 (no double credit)", got)
	}
}
