// Package idempotency provides an exactly-once execution wrapper backed by a
// persisted record. The record doubles as a distributed mutual-exclusion
// lock: its creation is a unique-constraint insert, so only one execution per
// key can ever hold the processing state.
package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// ErrInProgress is returned when another execution currently holds the key.
var ErrInProgress = errors.New("operation already in progress")

// GenerateKey deterministically composes an idempotency key from the external
// correlation id, the owner, and the operation name. Two requests for the
// same payment by the same user always collide on the same key.
func GenerateKey(correlationID, userID, operation string) string {
	return fmt.Sprintf("%s:%s:%s", operation, correlationID, userID)
}

// CheckResult is the outcome of a key lookup.
type CheckResult struct {
	Exists bool
	Status models.IdempotencyStatus
	Result json.RawMessage
	Error  string
}

// Guard wraps operations in idempotency records.
type Guard struct {
	store  storage.IdempotencyStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewGuard creates a Guard persisting records with the given TTL.
func NewGuard(store storage.IdempotencyStore, ttl time.Duration, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{store: store, ttl: ttl, logger: logger}
}

// Check looks up the record for a key. A record past its TTL is purged and
// reported as non-existent; this is the recovery path for executions that
// crashed while holding the lock.
func (g *Guard) Check(ctx context.Context, key string) (*CheckResult, error) {
	record, err := g.store.GetIdempotencyRecord(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to check idempotency record: %w", err)
	}
	if record == nil {
		return &CheckResult{}, nil
	}
	if record.Expired(time.Now()) {
		if err := g.store.DeleteRecord(ctx, key); err != nil {
			g.logger.Warn("failed to purge expired idempotency record", "key", key, "error", err)
		}
		return &CheckResult{}, nil
	}
	return &CheckResult{
		Exists: true,
		Status: record.Status,
		Result: record.Result,
		Error:  record.Error,
	}, nil
}

// Execute runs op at most once for the key. A completed record short-circuits
// to its cached result without re-execution; a live processing record is
// rejected with ErrInProgress; a failed record is purged and the operation
// retried fresh. Errors from op are recorded as failed and then returned, so
// the guard never swallows business errors.
func (g *Guard) Execute(ctx context.Context, key string, op func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	check, err := g.Check(ctx, key)
	if err != nil {
		return nil, err
	}

	if check.Exists {
		switch check.Status {
		case models.IdempotencyCompleted:
			g.logger.Info("idempotency cache hit, returning stored result", "key", key)
			return check.Result, nil
		case models.IdempotencyProcessing:
			return nil, ErrInProgress
		case models.IdempotencyFailed:
			// A previous attempt failed terminally; clear it and retry.
			if err := g.store.DeleteRecord(ctx, key); err != nil {
				return nil, fmt.Errorf("failed to clear failed idempotency record: %w", err)
			}
		}
	}

	if err := g.store.CreateRecord(ctx, key, g.ttl); err != nil {
		if errors.Is(err, storage.ErrIdempotencyKeyExists) {
			// Lost the lock race to a concurrent execution.
			return nil, ErrInProgress
		}
		return nil, fmt.Errorf("failed to acquire idempotency lock: %w", err)
	}

	result, opErr := op(ctx)
	if opErr != nil {
		if err := g.store.UpdateRecord(ctx, key, models.IdempotencyFailed, nil, opErr.Error()); err != nil {
			g.logger.Error("failed to record operation failure", "key", key, "error", err)
		}
		return nil, opErr
	}

	if err := g.store.UpdateRecord(ctx, key, models.IdempotencyCompleted, result, ""); err != nil {
		// The side effect happened but the completed record did not stick.
		// Surface an error so no caller reports success without the record;
		// the already-processed check makes an eventual retry a no-op.
		return nil, fmt.Errorf("operation succeeded but recording the result failed: %w", err)
	}

	return result, nil
}

// Execute runs a typed operation under a guard, handling the result encoding.
func Execute[T any](ctx context.Context, g *Guard, key string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := g.Execute(ctx, key, func(ctx context.Context) (json.RawMessage, error) {
		value, err := op(ctx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode operation result: %w", err)
		}
		return encoded, nil
	})
	if err != nil {
		return zero, err
	}

	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return zero, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return value, nil
}
