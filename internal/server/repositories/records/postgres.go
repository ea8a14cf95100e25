package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	cm "github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/dbx"
	"github.com/dmitrijs2005/garrison/internal/server/models"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// syncLockKey is the pg_advisory_xact_lock key held by every sync.
const syncLockKey int64 = 0x6761727269736f6e

// last_modified holds unix milliseconds.
const recordColumns = `global_id, entity_kind, payload, deleted, last_modified, seq, origin_device`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Lock(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, syncLockKey); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, globalID string) (*models.SyncRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_records WHERE global_id = $1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, globalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.SyncRecord) (int64, error) {
	query :=
		`INSERT INTO sync_records (global_id, entity_kind, payload, deleted, last_modified, seq, origin_device)
		 VALUES ($1, $2, $3, $4, $5, nextval('sync_seq'), $6)
		 ON CONFLICT (global_id) DO UPDATE SET
		   entity_kind = EXCLUDED.entity_kind,
		   payload = EXCLUDED.payload,
		   deleted = EXCLUDED.deleted,
		   last_modified = EXCLUDED.last_modified,
		   seq = EXCLUDED.seq,
		   origin_device = EXCLUDED.origin_device
		 RETURNING seq`

	var seq int64
	err := r.db.QueryRowContext(ctx, query,
		rec.GlobalID, string(rec.Kind), []byte(rec.Payload), rec.Deleted, timex.ToMillis(rec.LastModified), rec.OriginDevice,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	rec.Seq = seq
	return seq, nil
}

func (r *PostgresRepository) ChangesSince(ctx context.Context, cursor int64, deviceID string) ([]*models.SyncRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM sync_records
		 WHERE seq > $1 AND origin_device <> $2
		 ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, cursor, deviceID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.SyncRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}

func (r *PostgresRepository) MaxSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM sync_records`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return seq, nil
}

func (r *PostgresRepository) NationalIDOwner(ctx context.Context, nationalID, excludeGlobalID string) (string, error) {
	query :=
		`SELECT global_id FROM sync_records
		 WHERE entity_kind = 'person' AND NOT deleted
		   AND payload->>'nationalId' = $1 AND global_id <> $2
		 LIMIT 1`

	var owner string
	err := r.db.QueryRowContext(ctx, query, nationalID, excludeGlobalID).Scan(&owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", common.ErrNotFound
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return owner, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.SyncRecord, error) {
	var (
		rec     models.SyncRecord
		kind     string
		payload  []byte
		modified int64
	)
	if err := s.Scan(&rec.GlobalID, &kind, &payload, &rec.Deleted, &modified, &rec.Seq, &rec.OriginDevice); err != nil {
		return nil, err
	}
	rec.Kind = cm.EntityKind(kind)
	rec.Payload = payload
	rec.LastModified = timex.FromMillis(modified)
	return &rec, nil
}
