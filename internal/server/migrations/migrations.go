// Package migrations embeds the PostgreSQL schema of the sync server.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// Up applies pending migrations and returns the resulting version.
func Up(ctx context.Context, db *sql.DB) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectPostgres, db, Migrations)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrMigration, err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrMigration, err)
	}
	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrMigration, err)
	}
	return version, nil
}
