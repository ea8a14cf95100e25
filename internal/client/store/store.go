// Package store is the device-side persistence layer. A Store owns the SQLite
// handle, applies the embedded migrations on open and exposes the operations
// that keep the attendance tables consistent: person registration, serialized
// read-modify-write units, remote change application and sync confirmation.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/migrations"
	"github.com/dmitrijs2005/garrison/internal/client/repositories/attendance"
	"github.com/dmitrijs2005/garrison/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/garrison/internal/client/repositories/persons"
	"github.com/dmitrijs2005/garrison/internal/common"
	"github.com/dmitrijs2005/garrison/internal/dbx"
	"github.com/dmitrijs2005/garrison/internal/logging"
	"github.com/dmitrijs2005/garrison/internal/timex"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Repos groups the repositories bound to one transaction.
type Repos struct {
	Persons    persons.Repository
	Attendance attendance.Repository
	Metadata   metadata.Repository
}

func newRepos(db dbx.DBTX) *Repos {
	return &Repos{
		Persons:    persons.NewSQLiteRepository(db),
		Attendance: attendance.NewSQLiteRepository(db),
		Metadata:   metadata.NewSQLiteRepository(db),
	}
}

// Store is the local attendance database.
type Store struct {
	db     *sql.DB
	writer *dbx.Writer

	now   func() time.Time
	newID func() string
	log   logging.Logger
}

// Option customizes a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the UUID generator used for global ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// WithLogger sets the logger used for skipped remote changes.
func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.log = l }
}

// Open opens the SQLite database at dsn and migrates it to the latest schema.
// The pool is limited to one connection; SQLite has a single writer.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", common.ErrStorage, dsn, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := migrations.Up(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:     db,
		writer: dbx.NewWriter(db),
		now:    time.Now,
		newID:  uuid.NewString,
		log:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Now returns the current time as a stamp.
func (s *Store) Now() time.Time {
	return timex.Stamp(s.now())
}

// NewGlobalID returns a fresh cross-device identity.
func (s *Store) NewGlobalID() string {
	return s.newID()
}

// Update runs fn as one serialized transaction. Errors that are not part of
// the domain taxonomy are reported as common.ErrStorage.
func (s *Store) Update(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	err := s.writer.Update(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
	return storageErr(err)
}

// View runs fn inside a transaction for a consistent read across tables.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context, r *Repos) error) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, newRepos(tx))
	})
	return storageErr(err)
}

var domainErrors = []error{
	common.ErrStorage,
	common.ErrInvalidFormat,
	common.ErrInvalidName,
	common.ErrDuplicateNationalID,
	common.ErrUnknownPerson,
	common.ErrNotFound,
}

func storageErr(err error) error {
	if err == nil {
		return nil
	}
	for _, e := range domainErrors {
		if errors.Is(err, e) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", common.ErrStorage, err)
}
