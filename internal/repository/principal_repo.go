package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"workledger/internal/model"
)

// EmployeePrincipals resolves employee references. Employees are the only
// principals that can lead a team.
type EmployeePrincipals struct{ db rowQuerier }

func (r EmployeePrincipals) Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	if ref.Kind != model.KindEmployee {
		return model.Principal{}, wrongKind(model.KindEmployee, ref)
	}
	p := model.Principal{Ref: ref}
	err := r.db.QueryRow(ctx,
		`SELECT name, is_active, is_team_lead FROM employees WHERE id = $1`, ref.ID,
	).Scan(&p.Name, &p.IsActive, &p.IsTeamLead)
	if err != nil {
		return model.Principal{}, notFound(err, "employee", ref.ID)
	}
	return p, nil
}

type PMPrincipals struct{ db rowQuerier }

func (r PMPrincipals) Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	if ref.Kind != model.KindPM {
		return model.Principal{}, wrongKind(model.KindPM, ref)
	}
	p := model.Principal{Ref: ref}
	err := r.db.QueryRow(ctx,
		`SELECT name, is_active FROM project_managers WHERE id = $1`, ref.ID,
	).Scan(&p.Name, &p.IsActive)
	if err != nil {
		return model.Principal{}, notFound(err, "pm", ref.ID)
	}
	return p, nil
}

type ClientPrincipals struct{ db rowQuerier }

func (r ClientPrincipals) Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	if ref.Kind != model.KindClient {
		return model.Principal{}, wrongKind(model.KindClient, ref)
	}
	p := model.Principal{Ref: ref}
	err := r.db.QueryRow(ctx,
		`SELECT name, is_active FROM clients WHERE id = $1`, ref.ID,
	).Scan(&p.Name, &p.IsActive)
	if err != nil {
		return model.Principal{}, notFound(err, "client", ref.ID)
	}
	return p, nil
}

// AdminPrincipals resolves admin references and also serves as the admin
// directory of the transaction recorder.
type AdminPrincipals struct {
	db     rowQuerier
	logger *zap.Logger
}

func (r AdminPrincipals) Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	if ref.Kind != model.KindAdmin {
		return model.Principal{}, wrongKind(model.KindAdmin, ref)
	}
	p := model.Principal{Ref: ref}
	err := r.db.QueryRow(ctx,
		`SELECT name, is_active FROM admins WHERE id = $1`, ref.ID,
	).Scan(&p.Name, &p.IsActive)
	if err != nil {
		return model.Principal{}, notFound(err, "admin", ref.ID)
	}
	return p, nil
}

// FindFirstActive returns the earliest created active admin.
func (r AdminPrincipals) FindFirstActive(ctx context.Context) (model.PrincipalRef, error) {
	var id int
	err := r.db.QueryRow(ctx, `
        SELECT id FROM admins
        WHERE is_active
        ORDER BY created_at ASC, id ASC
        LIMIT 1
    `).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PrincipalRef{}, model.ErrNoActiveAdmin
	}
	if err != nil {
		r.logger.Error("Failed to find active admin", zap.Error(err))
		return model.PrincipalRef{}, err
	}
	return model.PrincipalRef{Kind: model.KindAdmin, ID: id}, nil
}

// PrincipalRepository hands a tagged reference to the resolver of its kind.
type PrincipalRepository struct {
	Employees EmployeePrincipals
	PMs       PMPrincipals
	Clients   ClientPrincipals
	Admins    AdminPrincipals
}

func NewPrincipalRepository(db *pgxpool.Pool, logger *zap.Logger) *PrincipalRepository {
	return newPrincipalRepository(db, logger)
}

func newPrincipalRepository(db rowQuerier, logger *zap.Logger) *PrincipalRepository {
	return &PrincipalRepository{
		Employees: EmployeePrincipals{db: db},
		PMs:       PMPrincipals{db: db},
		Clients:   ClientPrincipals{db: db},
		Admins:    AdminPrincipals{db: db, logger: logger},
	}
}

func (r *PrincipalRepository) Resolve(ctx context.Context, ref model.PrincipalRef) (model.Principal, error) {
	switch ref.Kind {
	case model.KindEmployee:
		return r.Employees.Resolve(ctx, ref)
	case model.KindPM:
		return r.PMs.Resolve(ctx, ref)
	case model.KindClient:
		return r.Clients.Resolve(ctx, ref)
	case model.KindAdmin:
		return r.Admins.Resolve(ctx, ref)
	}
	return model.Principal{}, fmt.Errorf("%w: principal kind %q", model.ErrInvalid, ref.Kind)
}

func (r *PrincipalRepository) FindFirstActive(ctx context.Context) (model.PrincipalRef, error) {
	return r.Admins.FindFirstActive(ctx)
}

func wrongKind(want model.PrincipalKind, ref model.PrincipalRef) error {
	return fmt.Errorf("%w: %s resolver given %s", model.ErrInvalid, want, ref)
}
