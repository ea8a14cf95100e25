// Package client is the device-side transport to the sync server.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic contract (see the Client interface) for the single
//     reconciliation call, Sync.
//  2. An HTTP/JSON implementation (see HTTPClient) that posts to /sync with
//     the bearer token and the device id headers and maps failures to
//     sentinel errors.
//
// # Error Handling
//
// Conditions are exposed as sentinel errors matched with errors.Is:
// ErrUnavailable (network failure, timeout, 5xx, 408, 429), ErrUnauthorized
// (401, 403) and ErrRejected (any other 4xx). Only ErrUnavailable is worth
// retrying.
//
// HTTPClient is safe for concurrent use. Every call honors the context
// deadline.
package client
