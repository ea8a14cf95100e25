// Package proto defines the JSON messages of the POST /sync exchange shared by
// the device and the sync server.
package proto

import "github.com/dmitrijs2005/garrison/internal/client/models"

// SyncPath is the route of the reconciliation endpoint.
const SyncPath = "/sync"

// ChangeEnvelope is one row in transit.
type ChangeEnvelope = models.ChangeEnvelope

// SyncRequest carries the device's pending operations and the last cursor it
// received.
type SyncRequest struct {
	DeviceID   string           `json:"deviceId"`
	Cursor     int64            `json:"cursor"`
	Operations []ChangeEnvelope `json:"operations"`
}

// SyncResponse carries the changes the device has not seen yet. A nil
// Accepted (field absent or null) acknowledges every submitted operation; a
// non-nil slice acknowledges only the listed global ids.
type SyncResponse struct {
	Changes  []ChangeEnvelope `json:"changes"`
	Accepted []string         `json:"accepted"`
	Cursor   int64            `json:"cursor"`
}

// ErrorResponse is the body of a failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}
