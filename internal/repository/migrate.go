package repository

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

//go:embed schema.sql
var schemaSQL string

// Migrate applies the embedded schema. Safe to run on every start-up.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	logger.Info("Running database migrations")
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		logger.Error("Failed to apply schema", zap.Error(err))
		return fmt.Errorf("apply schema: %w", err)
	}
	logger.Info("Database migrations completed successfully")
	return nil
}
