// Package records persists the server copy of synced entities.
package records

import (
	"context"

	"github.com/dmitrijs2005/garrison/internal/server/models"
)

// Repository is the record store used inside one sync transaction.
type Repository interface {
	// Lock serializes sync transactions until the surrounding tx ends.
	Lock(ctx context.Context) error
	Get(ctx context.Context, globalID string) (*models.SyncRecord, error)
	// Upsert writes rec with a fresh sequence number and returns it.
	Upsert(ctx context.Context, rec *models.SyncRecord) (int64, error)
	// ChangesSince lists rows with seq > cursor not written by deviceID,
	// ordered by seq.
	ChangesSince(ctx context.Context, cursor int64, deviceID string) ([]*models.SyncRecord, error)
	MaxSeq(ctx context.Context) (int64, error)
	// NationalIDOwner returns the global id of the active person holding
	// nationalID, other than excludeGlobalID.
	NationalIDOwner(ctx context.Context, nationalID, excludeGlobalID string) (string, error)
}
