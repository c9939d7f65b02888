package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"

	"workledger/internal/model"
)

func TestNotFound(t *testing.T) {
	other := errors.New("connection reset")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, model.ErrNotFound},
		{"wrapped no rows", errors.Join(errors.New("scan"), pgx.ErrNoRows), model.ErrNotFound},
		{"other error", other, other},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := notFound(tt.err, "task", 9); !errors.Is(got, tt.want) {
				t.Fatalf("notFound = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConflictOrMissing(t *testing.T) {
	down := errors.New("pool closed")
	tests := []struct {
		name string
		row  fakeRow
		want error
	}{
		{"row still exists", fakeRow{values: []any{true}}, model.ErrVersionConflict},
		{"row gone", fakeRow{values: []any{false}}, model.ErrNotFound},
		{"lookup fails", fakeRow{err: down}, down},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{row: tt.row}
			err := conflictOrMissing(context.Background(), q, "milestones", 3)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !strings.Contains(q.sql[0], "FROM milestones") {
				t.Fatalf("query = %q", q.sql[0])
			}
		})
	}
}

// The correctness of concurrent writers rests on these clauses.
func TestWriteStatementsKeepTheirGuards(t *testing.T) {
	tests := []struct {
		name   string
		sql    string
		guards []string
	}{
		{"incentive move", movePendingSQL, []string{"pending_balance = $2", "is_conversion_based", "pending_balance = 0"}},
		{"milestone progress", updateMilestoneProgressSQL, []string{"version = $3", "version = version + 1"}},
		{"project progress", updateProjectProgressSQL, []string{"version = $3", "version = version + 1"}},
		{"transaction insert", insertTransactionSQL, []string{"ON CONFLICT (source_type, project_id) DO NOTHING"}},
		{"points append", appendPointsSQL, []string{"ON CONFLICT (employee_id, task_id) DO NOTHING"}},
		{"task stamps", stampTransitionSQL, []string{"COALESCE(started_at, $3)", "COALESCE(completed_at, $3)"}},
		{"unscored tasks", unscoredTasksSQL, []string{"completed_at IS NOT NULL", "NOT EXISTS"}},
		{"unrecorded advances", unrecordedAdvanceSQL, []string{"advance_received > 0", "NOT EXISTS"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, g := range tt.guards {
				if !strings.Contains(tt.sql, g) {
					t.Errorf("statement lost %q:\n%s", g, tt.sql)
				}
			}
		})
	}
	if strings.Contains(stampTransitionSQL, "SET status") {
		t.Error("stamp statement must not write status")
	}
}

func TestSchemaDeclaresUniqueIndexes(t *testing.T) {
	for _, want := range []string{
		"uq_transactions_dedup ON transactions (source_type, project_id)",
		"uq_points_history_task ON points_history (employee_id, task_id)",
		"CHECK (pending_balance >= 0)",
	} {
		if !strings.Contains(schemaSQL, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}
