package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/dbx"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

const columns = `local_id, global_id, person_global_id, check_in, check_out, duration_hours, dirty, last_modified, deleted`

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

func scanRecord(s scanner) (*models.AttendanceRecord, error) {
	var (
		r            models.AttendanceRecord
		checkIn      int64
		checkOut     sql.NullInt64
		duration     sql.NullFloat64
		lastModified int64
	)
	err := s.Scan(&r.LocalID, &r.GlobalID, &r.PersonGlobalID, &checkIn, &checkOut, &duration,
		&r.Dirty, &lastModified, &r.Deleted)
	if err != nil {
		return nil, err
	}
	r.CheckIn = timex.FromMillis(checkIn)
	r.LastModified = timex.FromMillis(lastModified)
	if checkOut.Valid {
		out := timex.FromMillis(checkOut.Int64)
		r.CheckOut = &out
	}
	if duration.Valid {
		d := duration.Float64
		r.DurationHours = &d
	}
	return &r, nil
}

func nullableArgs(r *models.AttendanceRecord) (sql.NullInt64, sql.NullFloat64) {
	var (
		out sql.NullInt64
		dur sql.NullFloat64
	)
	if r.CheckOut != nil {
		out = sql.NullInt64{Int64: timex.ToMillis(*r.CheckOut), Valid: true}
	}
	if r.DurationHours != nil {
		dur = sql.NullFloat64{Float64: *r.DurationHours, Valid: true}
	}
	return out, dur
}

func (s *SQLiteRepository) Insert(ctx context.Context, r *models.AttendanceRecord) error {
	out, dur := nullableArgs(r)
	query := `INSERT INTO attendance_records
		(global_id, person_global_id, check_in, check_out, duration_hours, dirty, last_modified, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, r.GlobalID, r.PersonGlobalID, timex.ToMillis(r.CheckIn),
		out, dur, r.Dirty, timex.ToMillis(r.LastModified), r.Deleted)
	if err != nil {
		return fmt.Errorf("failed to insert attendance record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get attendance local id: %w", err)
	}
	r.LocalID = id
	return nil
}

func (s *SQLiteRepository) Update(ctx context.Context, r *models.AttendanceRecord) error {
	out, dur := nullableArgs(r)
	query := `UPDATE attendance_records SET person_global_id=?, check_in=?, check_out=?, duration_hours=?,
		dirty=?, last_modified=?, deleted=? WHERE global_id=?`
	res, err := s.db.ExecContext(ctx, query, r.PersonGlobalID, timex.ToMillis(r.CheckIn), out, dur,
		r.Dirty, timex.ToMillis(r.LastModified), r.Deleted, r.GlobalID)
	if err != nil {
		return fmt.Errorf("failed to update attendance record: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return fmt.Errorf("update attendance record %s: %w", r.GlobalID, common.ErrNotFound)
	}
	return nil
}

func (s *SQLiteRepository) Upsert(ctx context.Context, r *models.AttendanceRecord) error {
	out, dur := nullableArgs(r)
	query := `INSERT INTO attendance_records
		(global_id, person_global_id, check_in, check_out, duration_hours, dirty, last_modified, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(global_id) DO UPDATE SET person_global_id = excluded.person_global_id,
			check_in = excluded.check_in,
			check_out = excluded.check_out,
			duration_hours = excluded.duration_hours,
			dirty = excluded.dirty,
			last_modified = excluded.last_modified,
			deleted = excluded.deleted`
	_, err := s.db.ExecContext(ctx, query, r.GlobalID, r.PersonGlobalID, timex.ToMillis(r.CheckIn),
		out, dur, r.Dirty, timex.ToMillis(r.LastModified), r.Deleted)
	if err != nil {
		return fmt.Errorf("failed to upsert attendance record: %w", err)
	}
	return nil
}

func (s *SQLiteRepository) getOne(ctx context.Context, where string, arg any) (*models.AttendanceRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM attendance_records WHERE `+where, arg)
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return r, nil
}

func (s *SQLiteRepository) GetOpenByPerson(ctx context.Context, personGlobalID string) (*models.AttendanceRecord, error) {
	return s.getOne(ctx, `person_global_id=? AND check_out IS NULL AND deleted=0`, personGlobalID)
}

func (s *SQLiteRepository) GetByGlobalID(ctx context.Context, globalID string) (*models.AttendanceRecord, error) {
	return s.getOne(ctx, `global_id=?`, globalID)
}

func (s *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.AttendanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select attendance records: %w", err)
	}
	defer rows.Close()

	var result []*models.AttendanceRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLiteRepository) ListDirty(ctx context.Context) ([]*models.AttendanceRecord, error) {
	return s.list(ctx, `SELECT `+columns+` FROM attendance_records WHERE dirty=1 ORDER BY local_id`)
}

func (s *SQLiteRepository) MarkSynced(ctx context.Context, globalID string, lastModified time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attendance_records SET dirty=0 WHERE global_id=? AND last_modified=? AND dirty=1`,
		globalID, timex.ToMillis(lastModified))
	if err != nil {
		return false, fmt.Errorf("failed to mark attendance record synced: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return ra == 1, nil
}

func (s *SQLiteRepository) ListByPerson(ctx context.Context, personGlobalID string) ([]*models.AttendanceRecord, error) {
	return s.list(ctx, `SELECT `+columns+` FROM attendance_records
		WHERE person_global_id=? AND deleted=0 ORDER BY check_in DESC`, personGlobalID)
}

func (s *SQLiteRepository) Latest(ctx context.Context, limit int) ([]*models.AttendanceRecord, error) {
	return s.list(ctx, `SELECT `+columns+` FROM attendance_records
		WHERE deleted=0 ORDER BY check_in DESC LIMIT ?`, limit)
}

func (s *SQLiteRepository) Stats(ctx context.Context) ([]models.PersonStats, error) {
	query := `SELECT p.national_id, p.full_name, COUNT(r.local_id), COALESCE(SUM(r.duration_hours), 0)
		FROM persons p
		JOIN attendance_records r ON r.person_global_id = p.global_id
		WHERE p.deleted=0 AND r.deleted=0 AND r.check_out IS NOT NULL
		GROUP BY p.global_id
		ORDER BY p.full_name`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select attendance stats: %w", err)
	}
	defer rows.Close()

	var result []models.PersonStats
	for rows.Next() {
		var st models.PersonStats
		if err := rows.Scan(&st.NationalID, &st.FullName, &st.Records, &st.TotalHours); err != nil {
			return nil, err
		}
		st.TotalHours = round2(st.TotalHours)
		if st.Records > 0 {
			st.AverageHours = round2(st.TotalHours / float64(st.Records))
		}
		result = append(result, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
