// Package deposits orchestrates the completion of a wallet deposit: verify
// the external payment, credit the buyer's wallet exactly once, and reflect
// the outcome onto the correlated deposit and activity records.
package deposits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/money"
	"github.com/streampass/wallet-deposits/pkg/notify"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// OperationDeposit names the guarded operation. It is one component of the
// idempotency key, so every completion trigger for the same payment and user
// collides on the same key regardless of which entry point delivered it.
const OperationDeposit = "deposit_balance_update"

// ActivityTypeDeposit is the trail entry type for a wallet deposit.
const ActivityTypeDeposit = "wallet_deposit"

// Config carries the deposit policy applied at initiation time.
type Config struct {
	Currency   string
	MinDeposit decimal.Decimal
	MaxDeposit decimal.Decimal
}

// Service is the deposit completion orchestrator.
type Service struct {
	store     storage.Storage
	provider  gateway.Provider
	verifier  *gateway.Verifier
	guard     *idempotency.Guard
	trail     *activity.Trail
	publisher notify.Publisher
	cfg       Config
	logger    *slog.Logger
}

// NewService creates a Service. The publisher may be nil when push delivery
// is not configured.
func NewService(store storage.Storage, provider gateway.Provider, verifier *gateway.Verifier,
	guard *idempotency.Guard, trail *activity.Trail, publisher notify.Publisher,
	cfg Config, logger *slog.Logger) *Service {
	if publisher == nil {
		publisher = &notify.NoOpPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		provider:  provider,
		verifier:  verifier,
		guard:     guard,
		trail:     trail,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// InitiationResult is returned from InitiateDeposit. Exactly one of
// CheckoutURL or QRCode is populated, depending on the requested method.
type InitiationResult struct {
	DepositID   string `json:"deposit_id"`
	ExternalRef string `json:"external_ref"`
	CheckoutURL string `json:"checkout_url,omitempty"`
	QRCode      string `json:"qr_code,omitempty"`
}

// InitiateDeposit opens a checkout session with the provider and records the
// deposit in the initiated state, together with its pending activity.
func (s *Service) InitiateDeposit(ctx context.Context, userID string, amount decimal.Decimal, method gateway.CheckoutMethod) (*InitiationResult, error) {
	amount = money.Round2(amount)
	if amount.LessThan(s.cfg.MinDeposit) {
		return nil, &VerificationError{Code: gateway.CodeBounds,
			Reason: fmt.Sprintf("deposit amount %s is below the minimum of %s", amount.StringFixed(2), s.cfg.MinDeposit.StringFixed(2))}
	}
	if amount.GreaterThan(s.cfg.MaxDeposit) {
		return nil, &VerificationError{Code: gateway.CodeBounds,
			Reason: fmt.Sprintf("deposit amount %s exceeds the maximum of %s", amount.StringFixed(2), s.cfg.MaxDeposit.StringFixed(2))}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, gateway.CheckoutParams{
		AmountMinor: money.ToMinorUnits(amount),
		Currency:    s.cfg.Currency,
		UserID:      userID,
		Method:      method,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	depositID := uuid.New().String()
	activityID := s.recordPendingActivity(ctx, userID, depositID, session.PaymentRef, amount)

	now := time.Now()
	deposit := &models.Deposit{
		ID:              depositID,
		UserID:          userID,
		ExternalRef:     session.PaymentRef,
		RequestedAmount: amount,
		Status:          models.DepositInitiated,
		IdempotencyKey:  idempotency.GenerateKey(session.PaymentRef, userID, OperationDeposit),
		ActivityID:      activityID,
		InitiatedAt:     now,
		UpdatedAt:       now,
	}
	if _, err := s.store.CreateDeposit(ctx, deposit); err != nil {
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	depositsInitiatedTotal.Inc()
	return &InitiationResult{
		DepositID:   depositID,
		ExternalRef: session.PaymentRef,
		CheckoutURL: session.URL,
		QRCode:      session.QRCode,
	}, nil
}

// CompletionResult is the cached outcome of a completed deposit. A cache hit
// on the idempotency key replays this exact payload without re-crediting.
type CompletionResult struct {
	DepositID   string `json:"deposit_id"`
	ExternalRef string `json:"external_ref"`
	Amount      string `json:"amount"`
	Balance     string `json:"balance"`
	Status      string `json:"status"`
}

// CompleteDeposit runs the guarded completion path for an external payment
// reference. Callers racing on the same payment either receive the cached
// result or idempotency.ErrInProgress; the wallet is credited at most once.
func (s *Service) CompleteDeposit(ctx context.Context, userID, externalRef string, claimedAmount decimal.Decimal) (*CompletionResult, error) {
	key := idempotency.GenerateKey(externalRef, userID, OperationDeposit)
	result, err := idempotency.Execute(ctx, s.guard, key, func(ctx context.Context) (CompletionResult, error) {
		return s.settle(ctx, userID, externalRef, claimedAmount)
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// settle is the single execution of the credit path, always run under the
// guard. Verification and the credit are the primary effects; the deposit
// record, activity, and push notification reflect the outcome afterwards.
func (s *Service) settle(ctx context.Context, userID, externalRef string, claimedAmount decimal.Decimal) (CompletionResult, error) {
	verification, err := s.verifier.ValidateDepositPayment(ctx, externalRef, userID, claimedAmount)
	if err != nil {
		return CompletionResult{}, err
	}
	if !verification.Valid {
		return s.rejectSettlement(ctx, externalRef, claimedAmount, verification)
	}

	deposit, err := s.findOrCreateDeposit(ctx, userID, externalRef, claimedAmount)
	if err != nil {
		return CompletionResult{}, err
	}
	if err := s.store.UpdateDepositStatus(ctx, deposit.ID, storage.DepositUpdate{Status: models.DepositProcessing}); err != nil {
		return CompletionResult{}, fmt.Errorf("failed to mark deposit processing: %w", err)
	}

	balanceType := models.DefaultBalanceType(models.OwnerBuyer)
	if _, err := s.store.FindOrCreateBalance(ctx, userID, models.OwnerBuyer, balanceType); err != nil {
		return CompletionResult{}, err
	}
	balance, err := s.store.UpdateBalance(ctx, userID, models.OwnerBuyer, balanceType, verification.Amount, models.OperationAdd)
	if err != nil {
		depositsFailedTotal.WithLabelValues("ledger").Inc()
		return CompletionResult{}, fmt.Errorf("failed to credit wallet: %w", err)
	}

	// Past this point the wallet is credited. The guard will persist the
	// completed record from the returned result, which is what makes retries
	// no-ops, so bookkeeping failures are logged rather than returned.
	update := storage.DepositUpdate{
		Status:         models.DepositCompleted,
		VerifiedAmount: verification.Amount,
		ProviderStatus: verification.Intent.Status,
	}
	if err := s.store.UpdateDepositStatus(ctx, deposit.ID, update); err != nil {
		s.logger.Error("wallet credited but deposit record not updated",
			"deposit_id", deposit.ID, "external_ref", externalRef, "error", err)
	}
	s.finishActivity(ctx, deposit.ActivityID, models.ActivityCompleted)

	result := CompletionResult{
		DepositID:   deposit.ID,
		ExternalRef: externalRef,
		Amount:      verification.Amount.StringFixed(2),
		Balance:     balance.Amount.StringFixed(2),
		Status:      string(models.DepositCompleted),
	}
	s.publishStatus(ctx, userID, result)

	depositsCompletedTotal.Inc()
	s.logger.Info("deposit completed", "deposit_id", deposit.ID,
		"external_ref", externalRef, "amount", result.Amount)
	return result, nil
}

// rejectSettlement maps an invalid verification onto the error taxonomy. An
// already-processed payment converges to the recorded outcome instead of
// failing, so provider redeliveries stay no-ops even after the guard record
// expired.
func (s *Service) rejectSettlement(ctx context.Context, externalRef string, claimedAmount decimal.Decimal, verification *gateway.VerificationResult) (CompletionResult, error) {
	switch verification.Code {
	case gateway.CodeAlreadyProcessed:
		return s.recordedOutcome(ctx, externalRef)
	case gateway.CodeAmountMismatch:
		depositsFailedTotal.WithLabelValues("amount_mismatch").Inc()
		s.failDepositByRef(ctx, externalRef, verification.Error)
		return CompletionResult{}, &AmountMismatchError{Claimed: claimedAmount, Reason: verification.Error}
	default:
		depositsFailedTotal.WithLabelValues(verification.Code).Inc()
		s.failDepositByRef(ctx, externalRef, verification.Error)
		return CompletionResult{}, &VerificationError{Code: verification.Code, Reason: verification.Error}
	}
}

// recordedOutcome rebuilds the completion result from the completed deposit
// and the current wallet amount, without touching the ledger.
func (s *Service) recordedOutcome(ctx context.Context, externalRef string) (CompletionResult, error) {
	deposit, err := s.store.GetCompletedDepositByRef(ctx, externalRef)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("failed to load processed deposit: %w", err)
	}
	result := CompletionResult{
		DepositID:   deposit.ID,
		ExternalRef: externalRef,
		Amount:      deposit.VerifiedAmount.StringFixed(2),
		Status:      string(models.DepositCompleted),
	}
	balance, err := s.store.GetBalance(ctx, deposit.UserID, models.OwnerBuyer, models.DefaultBalanceType(models.OwnerBuyer))
	if err == nil {
		result.Balance = balance.Amount.StringFixed(2)
	}
	return result, nil
}

// findOrCreateDeposit resolves the deposit record for an external reference.
// A webhook can land before, or entirely without, a client-side initiation,
// in which case the record is created on the spot.
func (s *Service) findOrCreateDeposit(ctx context.Context, userID, externalRef string, claimedAmount decimal.Decimal) (*models.Deposit, error) {
	deposit, err := s.store.GetDepositByRef(ctx, externalRef)
	if err == nil {
		return deposit, nil
	}
	if !errors.Is(err, storage.ErrDepositNotFound) {
		return nil, err
	}

	depositID := uuid.New().String()
	activityID := s.recordPendingActivity(ctx, userID, depositID, externalRef, claimedAmount)
	now := time.Now()
	return s.store.CreateDeposit(ctx, &models.Deposit{
		ID:              depositID,
		UserID:          userID,
		ExternalRef:     externalRef,
		RequestedAmount: money.Round2(claimedAmount),
		Status:          models.DepositInitiated,
		IdempotencyKey:  idempotency.GenerateKey(externalRef, userID, OperationDeposit),
		ActivityID:      activityID,
		InitiatedAt:     now,
		UpdatedAt:       now,
	})
}

// ProcessWebhookEvent handles one provider event pulled off the queue. A
// returned error means the event should be redelivered; business rejections
// are terminal and consume the event.
func (s *Service) ProcessWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	webhookEventsTotal.WithLabelValues(event.Type).Inc()

	switch event.Type {
	case gateway.EventPaymentSucceeded:
		return s.handlePaymentSucceeded(ctx, event)
	case gateway.EventPaymentFailed, gateway.EventPaymentCanceled:
		s.failDepositByRef(ctx, event.Intent.ID, fmt.Sprintf("provider reported %s", event.Type))
		return nil
	default:
		s.logger.Warn("ignoring unhandled webhook event type", "type", event.Type, "event_id", event.ID)
		return nil
	}
}

func (s *Service) handlePaymentSucceeded(ctx context.Context, event *gateway.WebhookEvent) error {
	userID := event.Intent.Metadata[gateway.MetadataUserKey]
	if userID == "" {
		s.logger.Error("webhook payment has no owner metadata", "event_id", event.ID, "ref", event.Intent.ID)
		return nil
	}

	claimed := money.FromMinorUnits(event.Intent.Amount)
	_, err := s.CompleteDeposit(ctx, userID, event.Intent.ID, claimed)
	if err == nil {
		return nil
	}
	if errors.Is(err, idempotency.ErrInProgress) {
		// Another delivery of the same payment holds the lock. It will finish
		// or expire; either way this copy of the event is redundant.
		s.logger.Info("webhook event skipped, completion already in progress", "ref", event.Intent.ID)
		return nil
	}
	var verr *VerificationError
	var merr *AmountMismatchError
	if errors.As(err, &verr) || errors.As(err, &merr) {
		// Terminal business rejection. Redelivering the event cannot change
		// the outcome.
		s.logger.Warn("webhook payment rejected", "ref", event.Intent.ID, "error", err)
		return nil
	}
	return fmt.Errorf("failed to process payment event %s: %w", event.ID, err)
}

// GetDeposit returns a deposit visible to the given user.
func (s *Service) GetDeposit(ctx context.Context, userID, depositID string) (*models.Deposit, error) {
	deposit, err := s.store.GetDeposit(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit.UserID != userID {
		return nil, storage.ErrDepositNotFound
	}
	return deposit, nil
}

// ListDeposits returns the user's deposits, most recent first.
func (s *Service) ListDeposits(ctx context.Context, userID string) ([]models.Deposit, error) {
	return s.store.ListDepositsByUserID(ctx, userID)
}

func (s *Service) recordPendingActivity(ctx context.Context, userID, depositID, externalRef string, amount decimal.Decimal) string {
	act, err := s.trail.Record(ctx, activity.CreateParams{
		Type:     ActivityTypeDeposit,
		Category: models.CategoryFinancial,
		Owner:    models.Actor{ID: userID, Role: string(models.OwnerBuyer)},
		Metadata: map[string]string{"amount": amount.StringFixed(2)},
		References: map[string]string{
			"deposit_id":   depositID,
			"external_ref": externalRef,
		},
		Visibility: models.VisibilityPrivate,
	})
	if err != nil {
		s.logger.Error("failed to record deposit activity", "deposit_id", depositID, "error", err)
		return ""
	}
	return act.ID
}

func (s *Service) finishActivity(ctx context.Context, activityID string, status models.ActivityStatus) {
	if activityID == "" {
		return
	}
	if err := s.trail.UpdateStatus(ctx, activityID, status); err != nil {
		s.logger.Error("failed to update deposit activity", "activity_id", activityID, "error", err)
	}
}

// failDepositByRef moves the deposit for an external reference to failed,
// best effort. Nothing to fail is not an error: a rejected payment may never
// have had a client-side initiation.
func (s *Service) failDepositByRef(ctx context.Context, externalRef, reason string) {
	deposit, err := s.store.GetDepositByRef(ctx, externalRef)
	if err != nil {
		if !errors.Is(err, storage.ErrDepositNotFound) {
			s.logger.Error("failed to look up deposit for failure", "external_ref", externalRef, "error", err)
		}
		return
	}
	if deposit.Status == models.DepositCompleted {
		// Never regress a completed deposit on a late failure event.
		return
	}
	update := storage.DepositUpdate{Status: models.DepositFailed, FailureReason: reason}
	if err := s.store.UpdateDepositStatus(ctx, deposit.ID, update); err != nil {
		s.logger.Error("failed to mark deposit failed", "deposit_id", deposit.ID, "error", err)
		return
	}
	s.finishActivity(ctx, deposit.ActivityID, models.ActivityFailed)
}

func (s *Service) publishStatus(ctx context.Context, userID string, result CompletionResult) {
	message := notify.Message{
		Type: notify.MessageTypeDepositStatus,
		Payload: notify.DepositStatusPayload{
			UserID:      userID,
			DepositID:   result.DepositID,
			ExternalRef: result.ExternalRef,
			Status:      result.Status,
			NewBalance:  result.Balance,
		},
	}
	if err := s.publisher.Publish(ctx, message); err != nil {
		s.logger.Warn("failed to push deposit status", "deposit_id", result.DepositID, "error", err)
	}
}
