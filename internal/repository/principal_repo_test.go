package repository

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap/zaptest"

	"workledger/internal/model"
)

func TestResolveDispatchesByKind(t *testing.T) {
	tests := []struct {
		kind     model.PrincipalKind
		table    string
		values   []any
		wantLead bool
	}{
		{model.KindEmployee, "FROM employees", []any{"Ada", true, true}, true},
		{model.KindPM, "FROM project_managers", []any{"Grace", true}, false},
		{model.KindClient, "FROM clients", []any{"Acme", false}, false},
		{model.KindAdmin, "FROM admins", []any{"Root", true}, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			q := &fakeQuerier{row: fakeRow{values: tt.values}}
			repo := newPrincipalRepository(q, zaptest.NewLogger(t))
			ref := model.PrincipalRef{Kind: tt.kind, ID: 7}

			p, err := repo.Resolve(context.Background(), ref)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if len(q.sql) != 1 || !strings.Contains(q.sql[0], tt.table) {
				t.Fatalf("queries = %q, want one %q", q.sql, tt.table)
			}
			if q.args[0][0] != 7 {
				t.Fatalf("args = %v", q.args[0])
			}
			if p.Ref != ref || p.Name != tt.values[0] || p.IsActive != tt.values[1] || p.IsTeamLead != tt.wantLead {
				t.Fatalf("principal = %+v", p)
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}}
	repo := newPrincipalRepository(q, zaptest.NewLogger(t))
	ctx := context.Background()

	if _, err := repo.Resolve(ctx, model.PrincipalRef{Kind: model.KindPM, ID: 3}); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing pm err = %v, want ErrNotFound", err)
	}
	if _, err := repo.Resolve(ctx, model.PrincipalRef{Kind: "robot", ID: 3}); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("unknown kind err = %v, want ErrInvalid", err)
	}
	if len(q.sql) != 1 {
		t.Fatalf("unknown kind reached storage: %q", q.sql)
	}
	if _, err := repo.Clients.Resolve(ctx, model.PrincipalRef{Kind: model.KindAdmin, ID: 1}); !errors.Is(err, model.ErrInvalid) {
		t.Fatalf("mismatched kind err = %v, want ErrInvalid", err)
	}
}

func TestFindFirstActive(t *testing.T) {
	q := &fakeQuerier{row: fakeRow{values: []any{4}}}
	repo := newPrincipalRepository(q, zaptest.NewLogger(t))
	ref, err := repo.FindFirstActive(context.Background())
	if err != nil || ref != (model.PrincipalRef{Kind: model.KindAdmin, ID: 4}) {
		t.Fatalf("FindFirstActive = %v, %v", ref, err)
	}

	q.row = fakeRow{err: pgx.ErrNoRows}
	if _, err := repo.FindFirstActive(context.Background()); !errors.Is(err, model.ErrNoActiveAdmin) {
		t.Fatalf("err = %v, want ErrNoActiveAdmin", err)
	}
}
