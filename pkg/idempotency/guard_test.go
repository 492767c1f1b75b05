package idempotency_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
	"github.com/streampass/wallet-deposits/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestGenerateKey(t *testing.T) {
	key := idempotency.GenerateKey("pi_123", "user-1", "deposit_balance_update")
	assert.Equal(t, "deposit_balance_update:pi_123:user-1", key)

	// Same inputs always produce the same key.
	assert.Equal(t, key, idempotency.GenerateKey("pi_123", "user-1", "deposit_balance_update"))
	assert.NotEqual(t, key, idempotency.GenerateKey("pi_124", "user-1", "deposit_balance_update"))
	assert.NotEqual(t, key, idempotency.GenerateKey("pi_123", "user-2", "deposit_balance_update"))
}

func TestExecute(t *testing.T) {
	key := "deposit_balance_update:pi_123:user-1"

	t.Run("Fresh Key Runs Operation", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(nil, nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
		mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyCompleted, json.RawMessage(`{"ok":true}`), "").Return(nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		calls := 0
		result, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			calls++
			return json.RawMessage(`{"ok":true}`), nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
		assert.JSONEq(t, `{"ok":true}`, string(result))
		mockStore.AssertExpectations(t)
	})

	t.Run("Completed Record Returns Cached Result Without Re-Execution", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(&models.IdempotencyRecord{
			Key:       key,
			Status:    models.IdempotencyCompleted,
			Result:    json.RawMessage(`{"balance":"50.00"}`),
			ExpiresAt: time.Now().Add(10 * time.Minute),
		}, nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		calls := 0
		result, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			calls++
			return nil, nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 0, calls, "operation must not re-execute on a cache hit")
		assert.JSONEq(t, `{"balance":"50.00"}`, string(result))
		mockStore.AssertExpectations(t)
	})

	t.Run("Processing Record Rejects With ErrInProgress", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(&models.IdempotencyRecord{
			Key:       key,
			Status:    models.IdempotencyProcessing,
			ExpiresAt: time.Now().Add(10 * time.Minute),
		}, nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			t.Fatal("operation must not run while another execution holds the lock")
			return nil, nil
		})

		assert.ErrorIs(t, err, idempotency.ErrInProgress)
		mockStore.AssertExpectations(t)
	})

	t.Run("Expired Processing Record Is Purged And Re-Executed", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(&models.IdempotencyRecord{
			Key:       key,
			Status:    models.IdempotencyProcessing,
			ExpiresAt: time.Now().Add(-1 * time.Minute),
		}, nil)
		mockStore.On("DeleteRecord", mock.Anything, key).Return(nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
		mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyCompleted, mock.Anything, "").Return(nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		calls := 0
		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			calls++
			return json.RawMessage(`{}`), nil
		})

		assert.NoError(t, err)
		assert.Equal(t, 1, calls, "an expired record must be treated as absent")
		mockStore.AssertExpectations(t)
	})

	t.Run("Failed Record Is Cleared And Retried", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(&models.IdempotencyRecord{
			Key:       key,
			Status:    models.IdempotencyFailed,
			Error:     "provider unreachable",
			ExpiresAt: time.Now().Add(10 * time.Minute),
		}, nil)
		mockStore.On("DeleteRecord", mock.Anything, key).Return(nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
		mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyCompleted, mock.Anything, "").Return(nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})

		assert.NoError(t, err)
		mockStore.AssertExpectations(t)
	})

	t.Run("Lock Race Rejects With ErrInProgress", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(nil, nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(storage.ErrIdempotencyKeyExists)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			t.Fatal("operation must not run after losing the lock race")
			return nil, nil
		})

		assert.ErrorIs(t, err, idempotency.ErrInProgress)
		mockStore.AssertExpectations(t)
	})

	t.Run("Operation Error Is Recorded As Failed And Returned", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(nil, nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
		mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyFailed, json.RawMessage(nil), "payment verification failed").Return(nil)

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		opErr := errors.New("payment verification failed")
		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			return nil, opErr
		})

		assert.ErrorIs(t, err, opErr)
		mockStore.AssertExpectations(t)
	})

	t.Run("Result Persistence Failure Is Surfaced", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(nil, nil)
		mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
		mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyCompleted, mock.Anything, "").Return(errors.New("dynamodb unavailable"))

		g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

		_, err := g.Execute(context.Background(), key, func(ctx context.Context) (json.RawMessage, error) {
			return json.RawMessage(`{}`), nil
		})

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "recording the result failed")
		mockStore.AssertExpectations(t)
	})
}

func TestExecuteTyped(t *testing.T) {
	type outcome struct {
		Balance string `json:"balance"`
	}

	key := "deposit_balance_update:pi_9:user-1"

	mockStore := new(mocks.Storage)
	mockStore.On("GetIdempotencyRecord", mock.Anything, key).Return(nil, nil)
	mockStore.On("CreateRecord", mock.Anything, key, 30*time.Minute).Return(nil)
	mockStore.On("UpdateRecord", mock.Anything, key, models.IdempotencyCompleted, mock.Anything, "").Return(nil)

	g := idempotency.NewGuard(mockStore, 30*time.Minute, nil)

	result, err := idempotency.Execute(context.Background(), g, key, func(ctx context.Context) (outcome, error) {
		return outcome{Balance: "50.00"}, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, "50.00", result.Balance)
	mockStore.AssertExpectations(t)
}
