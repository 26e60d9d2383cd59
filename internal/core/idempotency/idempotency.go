// Package idempotency defines the replay guard used by mutating HTTP endpoints.
//
// A client that retries a dispatch or a sale with the same Idempotency-Key
// header gets the first response back instead of moving stock twice.
package idempotency

import (
	"context"
	"time"
)

// Status of a guarded operation.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// DefaultTTL is how long a completed key is replayed.
const DefaultTTL = 24 * time.Hour

// StaleAfter is how long a pending key may stay pending before another
// request may reclaim it.
const StaleAfter = time.Minute

// Scope identifies a key. The same header value sent by two actors, or to
// two routes, names two independent keys.
type Scope struct {
	ActorID   string
	Operation string
	Key       string
}

// String returns the storage key.
func (s Scope) String() string {
	return s.ActorID + ":" + s.Operation + ":" + s.Key
}

// Replay is a cached HTTP response.
type Replay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Store persists idempotency keys.
type Store interface {
	// AcquireKey returns (nil, nil) when the caller now owns scope, a Replay
	// when the operation already finished, or an AppError when the key is
	// in flight or was sent with a different body.
	AcquireKey(ctx context.Context, scope Scope, requestHash string) (*Replay, error)

	// CompleteKey stores a successful response for replay.
	CompleteKey(ctx context.Context, scope Scope, statusCode int, contentType string, response any) error

	// FailKey stores an error response for replay.
	FailKey(ctx context.Context, scope Scope, statusCode int, contentType string, response any) error

	// ReleaseKey forgets a pending key so a retry runs again. Used after
	// server-side failures, which are not replayed.
	ReleaseKey(ctx context.Context, scope Scope) error
}

// NormalizeStatus defaults a missing status code to 200.
func NormalizeStatus(status int) int {
	if status == 0 {
		return 200
	}
	return status
}

// NormalizeContentType defaults a missing content type to JSON.
func NormalizeContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
