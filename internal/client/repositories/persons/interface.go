package persons

import (
	"context"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
)

// Repository describes Person persistence.
type Repository interface {
	// Insert stores a new row and fills p.LocalID.
	Insert(ctx context.Context, p *models.Person) error

	// Update overwrites the mutable fields of the row with p.GlobalID.
	Update(ctx context.Context, p *models.Person) error

	// Upsert inserts or fully replaces the row with p.GlobalID; used when
	// applying remote changes.
	Upsert(ctx context.Context, p *models.Person) error

	// GetActiveByNationalID returns the non-deleted row with the given id or
	// common.ErrNotFound.
	GetActiveByNationalID(ctx context.Context, nationalID string) (*models.Person, error)

	// GetByGlobalID returns the row, tombstoned or not, or common.ErrNotFound.
	GetByGlobalID(ctx context.Context, globalID string) (*models.Person, error)

	// ListActive returns non-deleted persons ordered by name.
	ListActive(ctx context.Context) ([]*models.Person, error)

	// ListDirty returns every row awaiting sync, tombstones included.
	ListDirty(ctx context.Context) ([]*models.Person, error)

	// MarkSynced clears the dirty flag when the row is still at lastModified.
	// It reports whether a row was cleared.
	MarkSynced(ctx context.Context, globalID string, lastModified time.Time) (bool, error)
}
