package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/nationalid"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// Outcome is the result of applying one remote change.
type Outcome int

const (
	// OutcomeApplied means the incoming row replaced or created the local one.
	OutcomeApplied Outcome = iota
	// OutcomeStale means the local row is as new or newer; nothing changed.
	OutcomeStale
	// OutcomeConflict means the row would break a local invariant and was
	// skipped.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	case OutcomeConflict:
		return "conflict"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ApplyResult counts outcomes of a batch of remote changes. Cursor is the
// cursor stored after the batch.
type ApplyResult struct {
	Applied   int
	Stale     int
	Conflicts int
	Cursor    int64
}

func (r *ApplyResult) add(o Outcome) {
	switch o {
	case OutcomeApplied:
		r.Applied++
	case OutcomeStale:
		r.Stale++
	case OutcomeConflict:
		r.Conflicts++
	}
}

// UpsertFromRemote applies one change with last-writer-wins.
func (s *Store) UpsertFromRemote(ctx context.Context, env models.ChangeEnvelope) (Outcome, error) {
	var out Outcome
	err := s.Update(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		out, err = s.applyRemote(ctx, r, env)
		return err
	})
	return out, err
}

// ApplyRemote applies a pulled batch and stores the new cursor in the same
// transaction. Any storage failure rolls the whole batch back.
//
// When a change is skipped as a conflict the stored cursor is kept, so the
// server offers the batch again on the next cycle; rows applied meanwhile
// come back as stale and the skipped one is retried once the local conflict
// is gone.
func (s *Store) ApplyRemote(ctx context.Context, changes []models.ChangeEnvelope, cursor int64) (ApplyResult, error) {
	var res ApplyResult
	err := s.Update(ctx, func(ctx context.Context, r *Repos) error {
		res = ApplyResult{}
		for _, env := range changes {
			o, err := s.applyRemote(ctx, r, env)
			if err != nil {
				return err
			}
			res.add(o)
		}

		if res.Conflicts > 0 {
			held, err := r.Metadata.GetInt64(ctx, metadata.KeySyncCursor)
			if err != nil {
				return err
			}
			s.log.Warn(ctx, "sync cursor held back by conflicts",
				"conflicts", res.Conflicts, "cursor", held, "offered", cursor)
			res.Cursor = held
			return nil
		}

		res.Cursor = cursor
		return r.Metadata.SetInt64(ctx, metadata.KeySyncCursor, cursor)
	})
	return res, err
}

func (s *Store) applyRemote(ctx context.Context, r *Repos, env models.ChangeEnvelope) (Outcome, error) {
	if err := env.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}
	stamp := timex.Stamp(env.LastModified)

	var (
		out Outcome
		err error
	)
	switch env.Kind {
	case models.EntityKindPerson:
		out, err = s.applyPerson(ctx, r, env, stamp)
	case models.EntityKindAttendance:
		out, err = s.applyAttendance(ctx, r, env, stamp)
	}
	if err != nil {
		return 0, err
	}
	if out == OutcomeConflict {
		s.log.Warn(ctx, "remote change skipped", "kind", env.Kind, "globalId", env.GlobalID)
	}
	return out, nil
}

// newer reports whether stamp strictly beats the local row. A missing row is
// always beaten; a tie keeps the local row.
func newer[T any](get func() (T, error), lastModified func(T) time.Time, stamp time.Time) (bool, error) {
	local, err := get()
	if errors.Is(err, common.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return stamp.After(lastModified(local)), nil
}

func (s *Store) applyPerson(ctx context.Context, r *Repos, env models.ChangeEnvelope, stamp time.Time) (Outcome, error) {
	ok, err := newer(
		func() (*models.Person, error) { return r.Persons.GetByGlobalID(ctx, env.GlobalID) },
		func(p *models.Person) time.Time { return p.LastModified },
		stamp,
	)
	if err != nil || !ok {
		return OutcomeStale, err
	}

	nid := env.Person.NationalID
	if id, err := nationalid.Normalize(nid); err == nil {
		nid = id.String()
	}

	if !env.Deleted {
		other, err := r.Persons.GetActiveByNationalID(ctx, nid)
		switch {
		case err == nil && other.GlobalID != env.GlobalID:
			return OutcomeConflict, nil
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return 0, err
		}
	}

	p := &models.Person{
		GlobalID:     env.GlobalID,
		FullName:     env.Person.FullName,
		NationalID:   nid,
		LastModified: stamp,
		Deleted:      env.Deleted,
	}
	if err := r.Persons.Upsert(ctx, p); err != nil {
		return 0, err
	}
	return OutcomeApplied, nil
}

func (s *Store) applyAttendance(ctx context.Context, r *Repos, env models.ChangeEnvelope, stamp time.Time) (Outcome, error) {
	ok, err := newer(
		func() (*models.AttendanceRecord, error) { return r.Attendance.GetByGlobalID(ctx, env.GlobalID) },
		func(a *models.AttendanceRecord) time.Time { return a.LastModified },
		stamp,
	)
	if err != nil || !ok {
		return OutcomeStale, err
	}

	data := env.Attendance
	rec := &models.AttendanceRecord{
		GlobalID:       env.GlobalID,
		PersonGlobalID: data.PersonGlobalID,
		CheckIn:        timex.Stamp(data.CheckIn),
		LastModified:   stamp,
		Deleted:        env.Deleted,
	}
	if data.CheckOut != nil {
		out := timex.Stamp(*data.CheckOut)
		if !out.After(rec.CheckIn) {
			return OutcomeConflict, nil
		}
		hours := DurationHours(rec.CheckIn, out)
		if data.DurationHours != nil && *data.DurationHours >= 0 {
			hours = *data.DurationHours
		}
		rec.CheckOut = &out
		rec.DurationHours = &hours
	}

	if rec.Open() && !rec.Deleted {
		open, err := r.Attendance.GetOpenByPerson(ctx, rec.PersonGlobalID)
		switch {
		case err == nil && open.GlobalID != rec.GlobalID:
			return OutcomeConflict, nil
		case err != nil && !errors.Is(err, common.ErrNotFound):
			return 0, err
		}
	}

	if err := r.Attendance.Upsert(ctx, rec); err != nil {
		return 0, err
	}
	return OutcomeApplied, nil
}

// DurationHours returns the elapsed hours between in and out rounded to two
// decimals.
func DurationHours(in, out time.Time) float64 {
	h := out.Sub(in).Hours()
	return math.Round(h*100) / 100
}

// MarkSynced clears the dirty flag of every acknowledged row that is still at
// the acknowledged version and returns how many were cleared.
func (s *Store) MarkSynced(ctx context.Context, acks []models.Ack) (int, error) {
	cleared := 0
	err := s.Update(ctx, func(ctx context.Context, r *Repos) error {
		cleared = 0
		for _, a := range acks {
			var (
				ok  bool
				err error
			)
			switch a.Kind {
			case models.EntityKindPerson:
				ok, err = r.Persons.MarkSynced(ctx, a.GlobalID, a.LastModified)
			case models.EntityKindAttendance:
				ok, err = r.Attendance.MarkSynced(ctx, a.GlobalID, a.LastModified)
			default:
				err = fmt.Errorf("%w: %w: %q", common.ErrStorage, common.ErrUnknownEntityKind, a.Kind)
			}
			if err != nil {
				return err
			}
			if ok {
				cleared++
			}
		}
		return nil
	})
	return cleared, err
}
