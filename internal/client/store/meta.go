package store

import (
	"context"
	"time"

	"github.com/dmitrijs2005/garrison/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/garrison/internal/timex"
)

// DeviceID returns the installation id, generating and persisting one on
// first use.
func (s *Store) DeviceID(ctx context.Context) (string, error) {
	var id string
	err := s.Update(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		id, err = r.Metadata.GetString(ctx, metadata.KeyDeviceID)
		if err != nil || id != "" {
			return err
		}
		id = s.newID()
		return r.Metadata.SetString(ctx, metadata.KeyDeviceID, id)
	})
	return id, err
}

// AuthToken returns the stored bearer token, empty when logged out.
func (s *Store) AuthToken(ctx context.Context) (string, error) {
	return s.getString(ctx, metadata.KeyAuthToken)
}

// SetAuthToken stores the bearer token.
func (s *Store) SetAuthToken(ctx context.Context, token string) error {
	return s.Update(ctx, func(ctx context.Context, r *Repos) error {
		return r.Metadata.SetString(ctx, metadata.KeyAuthToken, token)
	})
}

// ClearAuthToken removes the bearer token.
func (s *Store) ClearAuthToken(ctx context.Context) error {
	return s.Update(ctx, func(ctx context.Context, r *Repos) error {
		return r.Metadata.Delete(ctx, metadata.KeyAuthToken)
	})
}

// Cursor returns the last server cursor, zero before the first sync.
func (s *Store) Cursor(ctx context.Context) (int64, error) {
	return s.getInt64(ctx, metadata.KeySyncCursor)
}

// LastSyncAt returns the time of the last successful sync, zero if none.
func (s *Store) LastSyncAt(ctx context.Context) (time.Time, error) {
	ms, err := s.getInt64(ctx, metadata.KeyLastSyncAt)
	if err != nil || ms == 0 {
		return time.Time{}, err
	}
	return timex.FromMillis(ms), nil
}

// SetLastSyncAt records a successful sync.
func (s *Store) SetLastSyncAt(ctx context.Context, at time.Time) error {
	return s.Update(ctx, func(ctx context.Context, r *Repos) error {
		return r.Metadata.SetInt64(ctx, metadata.KeyLastSyncAt, timex.ToMillis(at))
	})
}

func (s *Store) getString(ctx context.Context, key string) (string, error) {
	var v string
	err := s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		v, err = r.Metadata.GetString(ctx, key)
		return err
	})
	return v, err
}

func (s *Store) getInt64(ctx context.Context, key string) (int64, error) {
	var v int64
	err := s.View(ctx, func(ctx context.Context, r *Repos) error {
		var err error
		v, err = r.Metadata.GetInt64(ctx, key)
		return err
	})
	return v, err
}
