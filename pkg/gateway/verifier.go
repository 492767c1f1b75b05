package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/money"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// Failure codes identifying which check rejected a payment. Callers use
// these to map failures to distinct error classes without parsing reasons.
const (
	CodeProviderError    = "provider_error"
	CodeNotFound         = "not_found"
	CodeStatus           = "status"
	CodeOwner            = "owner"
	CodeAmountMismatch   = "amount_mismatch"
	CodeMethod           = "method"
	CodeAlreadyProcessed = "already_processed"
	CodeBounds           = "bounds"
)

// VerificationResult is the structured outcome of a verification. Business
// failures come back as Valid=false with a specific reason rather than as an
// error, so callers can always explain to the buyer why a payment was
// rejected.
type VerificationResult struct {
	Valid  bool
	Code   string
	Error  string
	Amount decimal.Decimal
	Intent *PaymentIntent
}

func invalid(code, format string, args ...any) *VerificationResult {
	return &VerificationResult{Code: code, Error: fmt.Sprintf(format, args...)}
}

// VerifierConfig carries the deposit policy bounds. These are business
// configuration, not constants.
type VerifierConfig struct {
	ExpectedMethod string
	MinDeposit     decimal.Decimal
	MaxDeposit     decimal.Decimal
	Tolerance      decimal.Decimal
}

// Verifier checks claimed payments against the provider's authoritative state
// and the deposit policy.
type Verifier struct {
	provider Provider
	deposits storage.DepositReader
	cfg      VerifierConfig
}

// NewVerifier creates a Verifier.
func NewVerifier(provider Provider, deposits storage.DepositReader, cfg VerifierConfig) *Verifier {
	if cfg.ExpectedMethod == "" {
		cfg.ExpectedMethod = MethodCard
	}
	return &Verifier{provider: provider, deposits: deposits, cfg: cfg}
}

// VerifyPaymentIntent retrieves the payment from the provider and validates
// it. The checks run in a fixed order because later checks assume the earlier
// ones passed: existence, terminal-success status, owner (when supplied),
// amount within tolerance (when supplied), payment method. The first failing
// check short-circuits with its specific reason.
func (v *Verifier) VerifyPaymentIntent(ctx context.Context, ref, expectedOwnerID string, expectedAmount *decimal.Decimal) *VerificationResult {
	intent, err := v.provider.RetrievePaymentIntent(ctx, ref)
	if err != nil {
		return invalid(CodeProviderError, "payment verification failed: %v", err)
	}
	if intent == nil {
		return invalid(CodeNotFound, "payment %s not found", ref)
	}

	if intent.Status != StatusSucceeded {
		return invalid(CodeStatus, "payment not successful: status is %s", intent.Status)
	}

	if expectedOwnerID != "" && intent.Metadata[MetadataUserKey] != expectedOwnerID {
		return invalid(CodeOwner, "payment does not belong to this user")
	}

	actual := money.FromMinorUnits(intent.Amount)
	if expectedAmount != nil && !money.Within(actual, *expectedAmount, v.cfg.Tolerance) {
		return invalid(CodeAmountMismatch, "payment amount mismatch: expected %s, charged %s",
			expectedAmount.StringFixed(2), actual.StringFixed(2))
	}

	if !hasMethod(intent.PaymentMethodTypes, v.cfg.ExpectedMethod) {
		return invalid(CodeMethod, "unexpected payment method: want %s", v.cfg.ExpectedMethod)
	}

	return &VerificationResult{Valid: true, Amount: actual, Intent: intent}
}

// IsPaymentAlreadyProcessed reports whether a completed deposit already
// references this external payment. It is a second line of defense,
// independent of the idempotency guard.
func (v *Verifier) IsPaymentAlreadyProcessed(ctx context.Context, ref string) (bool, error) {
	_, err := v.deposits.GetCompletedDepositByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrDepositNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check prior deposits: %w", err)
	}
	return true, nil
}

// ValidateDepositPayment runs the full deposit validation: already-processed
// gate, payment verification, then the configured min/max bounds.
func (v *Verifier) ValidateDepositPayment(ctx context.Context, ref, userID string, expectedAmount decimal.Decimal) (*VerificationResult, error) {
	processed, err := v.IsPaymentAlreadyProcessed(ctx, ref)
	if err != nil {
		return nil, err
	}
	if processed {
		return invalid(CodeAlreadyProcessed, "payment %s has already been processed", ref), nil
	}

	result := v.VerifyPaymentIntent(ctx, ref, userID, &expectedAmount)
	if !result.Valid {
		return result, nil
	}

	if result.Amount.LessThan(v.cfg.MinDeposit) {
		return invalid(CodeBounds, "deposit amount %s is below the minimum of %s",
			result.Amount.StringFixed(2), v.cfg.MinDeposit.StringFixed(2)), nil
	}
	if result.Amount.GreaterThan(v.cfg.MaxDeposit) {
		return invalid(CodeBounds, "deposit amount %s exceeds the maximum of %s",
			result.Amount.StringFixed(2), v.cfg.MaxDeposit.StringFixed(2)), nil
	}

	return result, nil
}

func hasMethod(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
