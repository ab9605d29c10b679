// Package cache keeps the responses of writes sent with an Idempotency-Key so a
// retried request from a flaky counter connection replays the first outcome
// instead of recording the sale or payment twice.
package cache

import (
	"context"
	"time"
)

// DefaultIdempotencyTTL is how long a completed response is replayed
const DefaultIdempotencyTTL = 24 * time.Hour

// PendingTTL bounds how long a reservation survives a crashed request
const PendingTTL = time.Minute

// Response is a stored outcome of an idempotent request. A Pending response marks a
// request that is still being served.
type Response struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
}

// IdempotencyStore reserves idempotency keys and stores the responses served for them
type IdempotencyStore interface {
	// Reserve claims key for a request with the given fingerprint. When the key is
	// already taken it returns the stored response and false.
	Reserve(ctx context.Context, key, fingerprint string) (*Response, bool, error)

	// Complete stores the served response for ttl
	Complete(ctx context.Context, key string, resp Response, ttl time.Duration) error

	// Release drops a reservation so the request can be retried
	Release(ctx context.Context, key string) error

	// Close releases the store's resources
	Close() error
}
