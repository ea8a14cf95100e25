package syncer

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/models"
	"github.com/dmitrijs2005/garrison/internal/client/store"
)

// ErrNoCredentials is returned when no bearer token is configured.
var ErrNoCredentials = errors.New("no bearer token configured")

// CredentialProvider supplies the bearer token for a cycle.
type CredentialProvider interface {
	Token(ctx context.Context) (string, error)
}

// DeviceIdentity supplies the stable installation id.
type DeviceIdentity interface {
	DeviceID(ctx context.Context) (string, error)
}

// Extractor collects pending local changes.
type Extractor interface {
	PendingChanges(ctx context.Context) ([]models.ChangeEnvelope, error)
}

// Store is the part of the local store the manager writes to.
type Store interface {
	Cursor(ctx context.Context) (int64, error)
	ApplyRemote(ctx context.Context, changes []models.ChangeEnvelope, cursor int64) (store.ApplyResult, error)
	MarkSynced(ctx context.Context, acks []models.Ack) (int, error)
	SetLastSyncAt(ctx context.Context, at time.Time) error
}

// TokenSource reads a persisted bearer token.
type TokenSource interface {
	AuthToken(ctx context.Context) (string, error)
}

// StoredCredentials reads the token saved by the login command and falls back
// to a static token from configuration.
type StoredCredentials struct {
	src      TokenSource
	fallback string
}

// NewStoredCredentials returns a provider backed by src.
func NewStoredCredentials(src TokenSource, fallback string) *StoredCredentials {
	return &StoredCredentials{src: src, fallback: fallback}
}

func (c *StoredCredentials) Token(ctx context.Context) (string, error) {
	tok, err := c.src.AuthToken(ctx)
	if err != nil {
		return "", err
	}
	if tok == "" {
		tok = c.fallback
	}
	if tok == "" {
		return "", ErrNoCredentials
	}
	return tok, nil
}
