// Package metadata persists device-level key/value settings next to the
// attendance tables: the installation id, the bearer token and the sync
// cursor.
package metadata

import "context"

// Well-known keys.
const (
	KeyDeviceID   = "device_id"
	KeyAuthToken  = "auth_token"
	KeySyncCursor = "sync_cursor"
	KeyLastSyncAt = "last_sync_at"
)

// Repository reads and writes metadata values. A missing key reads as
// (nil, nil) / ("", nil) / (0, nil).
type Repository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	GetString(ctx context.Context, key string) (string, error)
	SetString(ctx context.Context, key string, value string) error
	GetInt64(ctx context.Context, key string) (int64, error)
	SetInt64(ctx context.Context, key string, value int64) error
}
