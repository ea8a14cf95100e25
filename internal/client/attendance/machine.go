// Package attendance implements the presence toggle: scanning a registered
// national id opens a session when the person is absent and closes it when
// present.
package attendance

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/client/store"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/nationalid"
)

// State is the presence of a person.
type State string

const (
	Absent  State = "ABSENT"
	Present State = "PRESENT"
)

// Transition describes the outcome of one toggle.
type Transition struct {
	Person *models.Person
	Record *models.AttendanceRecord
	State  State
}

// Machine toggles attendance over a Store.
type Machine struct {
	store *store.Store
	log   logging.Logger
}

// NewMachine returns a Machine bound to s.
func NewMachine(s *store.Store, l logging.Logger) *Machine {
	return &Machine{store: s, log: l}
}

// Toggle flips the presence of the person identified by rawNationalID.
// Concurrent toggles for the same person serialize in the store and the
// second one observes the first.
func (m *Machine) Toggle(ctx context.Context, rawNationalID string) (*Transition, error) {
	id, err := nationalid.Normalize(rawNationalID)
	if err != nil {
		return nil, err
	}

	var tr *Transition
	err = m.store.Update(ctx, func(ctx context.Context, r *store.Repos) error {
		p, err := store.ActivePerson(ctx, r, id)
		if err != nil {
			return err
		}

		open, err := r.Attendance.GetOpenByPerson(ctx, p.GlobalID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			tr, err = m.checkIn(ctx, r, p)
			return err
		case err != nil:
			return err
		default:
			tr, err = m.checkOut(ctx, r, p, open)
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	m.log.Info(ctx, "attendance toggled", "nationalId", tr.Person.NationalID, "state", tr.State, "record", tr.Record.GlobalID)
	return tr, nil
}

func (m *Machine) checkIn(ctx context.Context, r *store.Repos, p *models.Person) (*Transition, error) {
	now := m.store.Now()
	rec := &models.AttendanceRecord{
		GlobalID:       m.store.NewGlobalID(),
		PersonGlobalID: p.GlobalID,
		CheckIn:        now,
		Dirty:          true,
		LastModified:   now,
	}
	if err := r.Attendance.Insert(ctx, rec); err != nil {
		return nil, fmt.Errorf("check-in: %w", err)
	}
	return &Transition{Person: p, Record: rec, State: Present}, nil
}

func (m *Machine) checkOut(ctx context.Context, r *store.Repos, p *models.Person, rec *models.AttendanceRecord) (*Transition, error) {
	store.CloseSession(rec, m.store.Now())
	if err := r.Attendance.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("check-out: %w", err)
	}
	return &Transition{Person: p, Record: rec, State: Absent}, nil
}

// State reports the presence of a person without changing it.
func (m *Machine) State(ctx context.Context, rawNationalID string) (State, error) {
	id, err := nationalid.Normalize(rawNationalID)
	if err != nil {
		return "", err
	}

	state := Absent
	err = m.store.View(ctx, func(ctx context.Context, r *store.Repos) error {
		p, err := store.ActivePerson(ctx, r, id)
		if err != nil {
			return err
		}
		_, err = r.Attendance.GetOpenByPerson(ctx, p.GlobalID)
		switch {
		case err == nil:
			state = Present
			return nil
		case errors.Is(err, common.ErrNotFound):
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return "", err
	}
	return state, nil
}
