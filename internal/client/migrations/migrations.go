// Package migrations embeds the ordered SQLite schema steps of the device
// store and applies them with goose. Each step runs once, inside its own
// transaction, and the applied version is persisted in goose_db_version.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var Migrations embed.FS

// Up applies every pending embedded migration and returns the resulting
// schema version.
func Up(ctx context.Context, db *sql.DB) (int64, error) {
	return UpFS(ctx, db, Migrations)
}

// UpFS applies the migrations found in fsys. A failing step is rolled back
// as a whole and leaves the version at the last successful step; the error
// wraps common.ErrMigration.
func UpFS(ctx context.Context, db *sql.DB, fsys fs.FS) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
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

// Version returns the applied schema version without migrating.
func Version(ctx context.Context, db *sql.DB, fsys fs.FS) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrMigration, err)
	}
	return provider.GetDBVersion(ctx)
}
