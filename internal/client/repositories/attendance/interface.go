// Package attendance provides the SQLite persistence of AttendanceRecord rows
// together with the read models used by reports (history, latest records,
// per-person statistics).
package attendance

import (
	"context"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
)

// Repository describes AttendanceRecord persistence.
type Repository interface {
	Insert(ctx context.Context, r *models.AttendanceRecord) error
	Update(ctx context.Context, r *models.AttendanceRecord) error
	Upsert(ctx context.Context, r *models.AttendanceRecord) error

	// GetOpenByPerson returns the non-deleted record without check-out for
	// the person, or common.ErrNotFound.
	GetOpenByPerson(ctx context.Context, personGlobalID string) (*models.AttendanceRecord, error)
	GetByGlobalID(ctx context.Context, globalID string) (*models.AttendanceRecord, error)

	ListDirty(ctx context.Context) ([]*models.AttendanceRecord, error)
	MarkSynced(ctx context.Context, globalID string, lastModified time.Time) (bool, error)

	// ListByPerson returns non-deleted records of a person, newest first.
	ListByPerson(ctx context.Context, personGlobalID string) ([]*models.AttendanceRecord, error)
	// Latest returns the most recent non-deleted records across persons.
	Latest(ctx context.Context, limit int) ([]*models.AttendanceRecord, error)
	// Stats aggregates closed records per active person.
	Stats(ctx context.Context) ([]models.PersonStats, error)
}
