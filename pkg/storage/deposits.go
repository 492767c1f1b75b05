package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/models"
)

// DepositUpdate carries the fields recorded when a deposit reaches a terminal
// state.
type DepositUpdate struct {
	Status         models.DepositStatus
	VerifiedAmount decimal.Decimal
	ProviderStatus string
	FailureReason  string
}

// DepositReader defines the interface for reading deposit data.
type DepositReader interface {
	// GetDeposit retrieves a deposit by its ID.
	GetDeposit(ctx context.Context, depositID string) (*models.Deposit, error)

	// GetDepositByRef retrieves the deposit referencing the external payment
	// reference regardless of its state, or ErrDepositNotFound.
	GetDepositByRef(ctx context.Context, externalRef string) (*models.Deposit, error)

	// GetCompletedDepositByRef retrieves a completed deposit referencing the
	// external payment reference, or ErrDepositNotFound. This is the second
	// line of defense against double processing, independent of the guard.
	GetCompletedDepositByRef(ctx context.Context, externalRef string) (*models.Deposit, error)

	// GetStuckDeposits retrieves deposits in the processing state for longer
	// than maxAge, for the sweeper to re-drive.
	GetStuckDeposits(ctx context.Context, maxAge time.Duration) ([]models.Deposit, error)

	// ListDepositsByUserID retrieves a user's deposits, most recent first.
	ListDepositsByUserID(ctx context.Context, userID string) ([]models.Deposit, error)
}

// DepositManager defines the interface for creating and transitioning deposits.
type DepositManager interface {
	// CreateDeposit persists a new deposit in the initiated state.
	CreateDeposit(ctx context.Context, deposit *models.Deposit) (*models.Deposit, error)

	// UpdateDepositStatus transitions a deposit, recording the verified amount
	// and provider status on completion or the failure reason on failure.
	UpdateDepositStatus(ctx context.Context, depositID string, update DepositUpdate) error
}

// DepositStore combines the reader and manager interfaces.
type DepositStore interface {
	DepositReader
	DepositManager
}
