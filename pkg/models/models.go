package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OwnerKind distinguishes the two sides of the marketplace. A balance belongs
// to exactly one of them.
type OwnerKind string

const (
	OwnerBuyer  OwnerKind = "buyer"
	OwnerSeller OwnerKind = "seller"
)

// BalanceType defines the purpose of a balance record.
type BalanceType string

const (
	BalanceWallet   BalanceType = "wallet"
	BalanceEarnings BalanceType = "earnings"
	BalanceEscrow   BalanceType = "escrow"
	BalancePending  BalanceType = "pending"
	BalanceReserved BalanceType = "reserved"
)

// DefaultBalanceType returns the balance purpose a fresh owner of the given
// kind gets on first ledger access: wallets for buyers, earnings for sellers.
func DefaultBalanceType(kind OwnerKind) BalanceType {
	if kind == OwnerSeller {
		return BalanceEarnings
	}
	return BalanceWallet
}

// BalanceStatus defines the possible states of a balance record.
type BalanceStatus string

const (
	BalanceActive    BalanceStatus = "active"
	BalanceFrozen    BalanceStatus = "frozen"
	BalanceSuspended BalanceStatus = "suspended"
)

// BalanceOperation is the direction of a ledger mutation.
type BalanceOperation string

const (
	OperationAdd      BalanceOperation = "add"
	OperationSubtract BalanceOperation = "subtract"
)

// Balance is a per-owner, per-purpose running monetary total. Amount is always
// non-negative and rounded to two decimal places; it is mutated only through
// the store's atomic update primitive.
type Balance struct {
	OwnerID     string
	OwnerKind   OwnerKind
	Type        BalanceType
	Amount      decimal.Decimal
	Status      BalanceStatus
	LastUpdated time.Time
	CreatedAt   time.Time
}

// IdempotencyStatus defines the lifecycle of an idempotency record.
type IdempotencyStatus string

const (
	IdempotencyProcessing IdempotencyStatus = "processing"
	IdempotencyCompleted  IdempotencyStatus = "completed"
	IdempotencyFailed     IdempotencyStatus = "failed"
)

// IdempotencyRecord is the persisted coordination record behind the
// exactly-once guard. At most one record per key may be in the processing
// state; a record past ExpiresAt is treated as absent.
type IdempotencyRecord struct {
	Key       string
	Status    IdempotencyStatus
	Result    json.RawMessage
	Error     string
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the record's TTL has passed at the given instant.
func (r *IdempotencyRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// DepositStatus defines the possible states of a deposit.
type DepositStatus string

const (
	DepositInitiated  DepositStatus = "initiated"
	DepositProcessing DepositStatus = "processing"
	DepositCompleted  DepositStatus = "completed"
	DepositFailed     DepositStatus = "failed"
	DepositCancelled  DepositStatus = "cancelled"
)

// Deposit correlates a wallet credit to the external payment reference that
// funded it. Exactly one completed Deposit corresponds to one balance mutation.
type Deposit struct {
	ID              string
	UserID          string
	ExternalRef     string
	RequestedAmount decimal.Decimal
	VerifiedAmount  decimal.Decimal
	Status          DepositStatus
	IdempotencyKey  string
	ActivityID      string
	ProviderStatus  string
	FailureReason   string
	InitiatedAt     time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// ActivityCategory groups user-facing events.
type ActivityCategory string

const (
	CategoryFinancial   ActivityCategory = "financial"
	CategoryInteraction ActivityCategory = "interaction"
	CategoryAccount     ActivityCategory = "account"
)

// ActivityStatus defines the lifecycle of an activity record.
type ActivityStatus string

const (
	ActivityPending    ActivityStatus = "pending"
	ActivityProcessing ActivityStatus = "processing"
	ActivityCompleted  ActivityStatus = "completed"
	ActivityFailed     ActivityStatus = "failed"
	ActivityCancelled  ActivityStatus = "cancelled"
)

// Terminal reports whether no further transition should move an activity out
// of this status.
func (s ActivityStatus) Terminal() bool {
	switch s {
	case ActivityCompleted, ActivityFailed, ActivityCancelled:
		return true
	}
	return false
}

// ActivityVisibility controls who may see an activity.
type ActivityVisibility string

const (
	VisibilityPrivate ActivityVisibility = "private"
	VisibilityParties ActivityVisibility = "parties"
	VisibilityPublic  ActivityVisibility = "public"
)

// Actor identifies a participant in an activity.
type Actor struct {
	ID   string `json:"id" dynamodbav:"id"`
	Role string `json:"role" dynamodbav:"role"`
}

// Activity is an append-only audit record of a user-facing event. Financial
// activities are the user-visible projection of a ledger mutation; they are
// updated to a terminal status but never destroyed.
type Activity struct {
	ID           string
	Type         string
	Category     ActivityCategory
	Status       ActivityStatus
	Owner        Actor
	Counterparty *Actor
	Metadata     map[string]string
	References   map[string]string
	Visibility   ActivityVisibility
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}
