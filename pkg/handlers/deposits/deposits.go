// Package deposits exposes the deposit lifecycle over HTTP: initiation,
// client-side completion polling, listing, and the provider webhook.
package deposits

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/streampass/wallet-deposits/pkg/auth"
	depositsvc "github.com/streampass/wallet-deposits/pkg/deposits"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/money"
	"github.com/streampass/wallet-deposits/pkg/queue"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// Webhook bodies are small JSON events; anything near this limit is abuse.
const maxWebhookBody = 1 << 20

// DepositsHandler holds the dependencies for deposit-related handlers.
type DepositsHandler struct {
	Service       *depositsvc.Service
	Queue         queue.EventQueue
	WebhookSecret string
	Logger        *slog.Logger
}

// NewDepositsHandler creates a new DepositsHandler.
func NewDepositsHandler(service *depositsvc.Service, eventQueue queue.EventQueue, webhookSecret string, logger *slog.Logger) *DepositsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DepositsHandler{Service: service, Queue: eventQueue, WebhookSecret: webhookSecret, Logger: logger}
}

type initiateRequest struct {
	Amount string `json:"amount"`
	Method string `json:"method"`
}

// InitiateDeposit opens a checkout session for the authenticated buyer.
func (h *DepositsHandler) InitiateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req initiateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid amount: %v", err), http.StatusBadRequest)
		return
	}
	method := gateway.CheckoutMethod(req.Method)
	if method == "" {
		method = gateway.CheckoutHosted
	}

	result, err := h.Service.InitiateDeposit(r.Context(), userID, amount, method)
	if err != nil {
		writeDepositError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type updateRequest struct {
	ExternalRef string `json:"external_ref"`
	Amount      string `json:"amount"`
}

// UpdateDeposit is the client-side completion poll: the buyer claims a
// payment finished and asks for the wallet to reflect it.
func (h *DepositsHandler) UpdateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if req.ExternalRef == "" {
		http.Error(w, "external_ref is required", http.StatusBadRequest)
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid amount: %v", err), http.StatusBadRequest)
		return
	}

	result, err := h.Service.CompleteDeposit(r.Context(), userID, req.ExternalRef, amount)
	if err != nil {
		writeDepositError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// GetDeposit returns one of the buyer's deposits.
func (h *DepositsHandler) GetDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	deposit, err := h.Service.GetDeposit(r.Context(), userID, chi.URLParam(r, "depositId"))
	if err != nil {
		if errors.Is(err, storage.ErrDepositNotFound) {
			http.Error(w, "Deposit not found", http.StatusNotFound)
		} else {
			http.Error(w, fmt.Sprintf("Failed to retrieve deposit: %v", err), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, deposit)
}

// ListDeposits returns the buyer's deposits, most recent first.
func (h *DepositsHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	deposits, err := h.Service.ListDeposits(r.Context(), userID)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve deposits: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, deposits)
}

// Webhook receives provider event deliveries. The signature is checked
// before the payload is trusted; a verified event is acknowledged with 200
// once durably enqueued, so provider retries stop even while crediting is
// still asynchronous.
func (h *DepositsHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	event, err := gateway.ParseEvent(payload, r.Header.Get(gateway.SignatureHeader), h.WebhookSecret, time.Now())
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			http.Error(w, "Invalid signature", http.StatusBadRequest)
		} else {
			http.Error(w, fmt.Sprintf("Invalid event payload: %v", err), http.StatusBadRequest)
		}
		return
	}

	if err := h.Queue.EnqueueWebhookEvent(r.Context(), event); err != nil {
		h.Logger.Error("failed to enqueue webhook event", "event_id", event.ID, "error", err)
		http.Error(w, "Failed to queue event", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// writeDepositError maps the orchestrator's error taxonomy onto status
// codes: business rejections are 400, lock contention is 409, anything else
// is a 500 the client may retry.
func writeDepositError(w http.ResponseWriter, err error) {
	var verr *depositsvc.VerificationError
	var merr *depositsvc.AmountMismatchError
	switch {
	case errors.As(err, &merr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": merr.Reason, "code": gateway.CodeAmountMismatch})
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason, "code": verr.Code})
	case errors.Is(err, idempotency.ErrInProgress):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "deposit completion already in progress"})
	default:
		http.Error(w, fmt.Sprintf("Failed to process deposit: %v", err), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
