package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/streampass/wallet-deposits/pkg/models"
)

// IdempotencyStore persists the coordination records behind the exactly-once
// guard. CreateRecord must be backed by a unique-constraint insert so a record
// in the processing state acts as a mutual-exclusion lock.
type IdempotencyStore interface {
	// GetIdempotencyRecord retrieves a record by key, or nil if absent.
	GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error)

	// CreateRecord inserts a fresh processing record with the given TTL. A
	// live record already holding the key yields ErrIdempotencyKeyExists; an
	// expired record is overwritten.
	CreateRecord(ctx context.Context, key string, ttl time.Duration) error

	// UpdateRecord transitions a record to a terminal status, storing the
	// opaque result payload or error detail.
	UpdateRecord(ctx context.Context, key string, status models.IdempotencyStatus, result json.RawMessage, errDetail string) error

	// DeleteRecord removes a record, typically after expiry or before a
	// retry of a failed operation.
	DeleteRecord(ctx context.Context, key string) error

	// ListExpiredRecords returns record keys whose TTL passed before now.
	ListExpiredRecords(ctx context.Context, now time.Time, limit int32) ([]string, error)
}
