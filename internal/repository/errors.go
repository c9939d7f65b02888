package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"workledger/internal/model"
)

// notFound maps pgx.ErrNoRows to model.ErrNotFound.
func notFound(err error, what string, id int) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", what, id, model.ErrNotFound)
	}
	return err
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conflictOrMissing tells a failed version-checked update apart: the row is
// either gone or was written by someone else.
func conflictOrMissing(ctx context.Context, db rowQuerier, table string, id int) error {
	var exists bool
	err := db.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM "+table+" WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %d: %w", table, id, model.ErrNotFound)
	}
	return fmt.Errorf("%s %d: %w", table, id, model.ErrVersionConflict)
}
