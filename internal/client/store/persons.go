package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/nationalid"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// CreatePerson registers a new person. The id is normalized first
// (ErrInvalidFormat), then checked against active rows
// (ErrDuplicateNationalID), then its check digit is verified
// (ErrInvalidFormat).
func (s *Store) CreatePerson(ctx context.Context, fullName, rawNationalID string) (*models.Person, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, common.ErrInvalidName
	}

	id, err := nationalid.Normalize(rawNationalID)
	if err != nil {
		return nil, err
	}

	var p *models.Person
	err = s.Update(ctx, func(ctx context.Context, r *Repos) error {
		existing, err := r.Persons.GetActiveByNationalID(ctx, id.String())
		switch {
		case err == nil:
			return fmt.Errorf("%w: %s (%s)", common.ErrDuplicateNationalID, id, existing.GlobalID)
		case !errors.Is(err, common.ErrNotFound):
			return err
		}

		if !id.Valid() {
			return fmt.Errorf("%w: wrong check digit in %s", common.ErrInvalidFormat, id)
		}

		p = &models.Person{
			GlobalID:     s.newID(),
			FullName:     fullName,
			NationalID:   id.String(),
			Dirty:        true,
			LastModified: s.Now(),
		}
		return r.Persons.Insert(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindPersonByNationalID returns the active person carrying raw, or
// ErrUnknownPerson.
func (s *Store) FindPersonByNationalID(ctx context.Context, raw string) (*models.Person, error) {
	id, err := nationalid.Normalize(raw)
	if err != nil {
		return nil, err
	}

	var p *models.Person
	err = s.View(ctx, func(ctx context.Context, r *Repos) error {
		p, err = ActivePerson(ctx, r, id)
		return err
	})
	return p, err
}

// ActivePerson looks id up inside an open unit of work.
func ActivePerson(ctx context.Context, r *Repos, id nationalid.ID) (*models.Person, error) {
	p, err := r.Persons.GetActiveByNationalID(ctx, id.String())
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", common.ErrUnknownPerson, id)
	}
	return p, err
}

// ListPersons returns every active person ordered by name.
func (s *Store) ListPersons(ctx context.Context) ([]*models.Person, error) {
	var list []*models.Person
	err := s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		list, err = r.Persons.ListActive(ctx)
		return err
	})
	return list, err
}

// RenamePerson corrects the name of an active person.
func (s *Store) RenamePerson(ctx context.Context, globalID, fullName string) (*models.Person, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, common.ErrInvalidName
	}
	return s.mutatePerson(ctx, globalID, func(_ context.Context, _ *Repos, p *models.Person) error {
		p.FullName = fullName
		return nil
	})
}

// DeletePerson tombstones an active person. A session still open for the
// person is closed at the same instant so it does not stay open forever.
func (s *Store) DeletePerson(ctx context.Context, globalID string) (*models.Person, error) {
	return s.mutatePerson(ctx, globalID, func(ctx context.Context, r *Repos, p *models.Person) error {
		p.Deleted = true

		open, err := r.Attendance.GetOpenByPerson(ctx, p.GlobalID)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		CloseSession(open, s.Now())
		return r.Attendance.Update(ctx, open)
	})
}

func (s *Store) mutatePerson(ctx context.Context, globalID string, mutate func(ctx context.Context, r *Repos, p *models.Person) error) (*models.Person, error) {
	var p *models.Person
	err := s.Update(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		p, err = r.Persons.GetByGlobalID(ctx, globalID)
		if errors.Is(err, common.ErrNotFound) || (err == nil && p.Deleted) {
			return fmt.Errorf("%w: %s", common.ErrUnknownPerson, globalID)
		}
		if err != nil {
			return err
		}

		if err := mutate(ctx, r, p); err != nil {
			return err
		}
		p.Dirty = true
		p.LastModified = timex.Next(p.LastModified, s.now())
		return r.Persons.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}
