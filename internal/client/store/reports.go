package store

import (
	"context"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/nationalid"
)

// History returns the attendance of one person, newest first.
func (s *Store) History(ctx context.Context, rawNationalID string) (*models.Person, []*models.AttendanceRecord, error) {
	id, err := nationalid.Normalize(rawNationalID)
	if err != nil {
		return nil, nil, err
	}

	var (
		p    *models.Person
		recs []*models.AttendanceRecord
	)
	err = s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		if p, err = ActivePerson(ctx, r, id); err != nil {
			return err
		}
		recs, err = r.Attendance.ListByPerson(ctx, p.GlobalID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return p, recs, nil
}

// Stats returns per-person totals over closed records.
func (s *Store) Stats(ctx context.Context) ([]models.PersonStats, error) {
	var stats []models.PersonStats
	err := s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		stats, err = r.Attendance.Stats(ctx)
		return err
	})
	return stats, err
}

// LatestRecords returns the most recent records across all persons.
func (s *Store) LatestRecords(ctx context.Context, limit int) ([]*models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []*models.AttendanceRecord
	err := s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		recs, err = r.Attendance.Latest(ctx, limit)
		return err
	})
	return recs, err
}
