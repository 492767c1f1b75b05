package storage

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/models"
)

// BalanceStore defines the ledger primitive. Implementations must make
// UpdateBalance atomic at the storage layer: the non-negative check and the
// mutation happen in a single conditional write, never a read followed by an
// unguarded write.
type BalanceStore interface {
	// FindOrCreateBalance returns the (owner, balanceType) record, creating it
	// with a zero amount and active status on first access.
	FindOrCreateBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType) (*models.Balance, error)

	// UpdateBalance atomically applies an add or subtract to an existing
	// balance and returns the resulting record. It fails with
	// ErrBalanceNotFound, ErrBalanceNotActive, or ErrInsufficientBalance
	// without mutating anything.
	UpdateBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType, amount decimal.Decimal, op models.BalanceOperation) (*models.Balance, error)

	// GetBalance retrieves the (owner, balanceType) record without creating it.
	GetBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType) (*models.Balance, error)
}
