package persons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/dbx"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

const columns = `local_id, global_id, full_name, national_id, dirty, last_modified, deleted`

// SQLiteRepository implements Repository over a dbx.DBTX.
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a repository bound to db.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(s scanner) (*models.Person, error) {
	var (
		p            models.Person
		lastModified int64
	)
	if err := s.Scan(&p.LocalID, &p.GlobalID, &p.FullName, &p.NationalID, &p.Dirty, &lastModified, &p.Deleted); err != nil {
		return nil, err
	}
	p.LastModified = timex.FromMillis(lastModified)
	return &p, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *models.Person) error {
	query := `INSERT INTO persons (global_id, full_name, national_id, dirty, last_modified, deleted)
		VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		p.GlobalID, p.FullName, p.NationalID, p.Dirty, timex.ToMillis(p.LastModified), p.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get person local id: %w", err)
	}
	p.LocalID = id
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p *models.Person) error {
	query := `UPDATE persons SET full_name=?, national_id=?, dirty=?, last_modified=?, deleted=?
		WHERE global_id=?`
	res, err := r.db.ExecContext(ctx, query,
		p.FullName, p.NationalID, p.Dirty, timex.ToMillis(p.LastModified), p.Deleted, p.GlobalID)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("update person %s: %w", p.GlobalID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) Upsert(ctx context.Context, p *models.Person) error {
	query := `INSERT INTO persons (global_id, full_name, national_id, dirty, last_modified, deleted)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(global_id) DO UPDATE SET full_name = excluded.full_name,
			national_id = excluded.national_id,
			dirty = excluded.dirty,
			last_modified = excluded.last_modified,
			deleted = excluded.deleted`
	_, err := r.db.ExecContext(ctx, query,
		p.GlobalID, p.FullName, p.NationalID, p.Dirty, timex.ToMillis(p.LastModified), p.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert person: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, where string, arg any) (*models.Person, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+columns+` FROM persons WHERE `+where, arg)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetActiveByNationalID(ctx context.Context, nationalID string) (*models.Person, error) {
	return r.getOne(ctx, `national_id=? AND deleted=0`, nationalID)
}

func (r *SQLiteRepository) GetByGlobalID(ctx context.Context, globalID string) (*models.Person, error) {
	return r.getOne(ctx, `global_id=?`, globalID)
}

func (r *SQLiteRepository) list(ctx context.Context, query string) ([]*models.Person, error) {
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select persons: %w", err)
	}
	defer rows.Close()

	var result []*models.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) ListActive(ctx context.Context) ([]*models.Person, error) {
	return r.list(ctx, `SELECT `+columns+` FROM persons WHERE deleted=0 ORDER BY full_name, local_id`)
}

func (r *SQLiteRepository) ListDirty(ctx context.Context) ([]*models.Person, error) {
	return r.list(ctx, `SELECT `+columns+` FROM persons WHERE dirty=1 ORDER BY local_id`)
}

func (r *SQLiteRepository) MarkSynced(ctx context.Context, globalID string, lastModified time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE persons SET dirty=0 WHERE global_id=? AND last_modified=? AND dirty=1`,
		globalID, timex.ToMillis(lastModified))
	if err != nil {
		return false, fmt.Errorf("failed to mark person synced: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra == 1, nil
}
