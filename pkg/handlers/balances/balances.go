// Package balances exposes the read-only wallet projection.
package balances

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/streampass/wallet-deposits/pkg/auth"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// BalancesHandler holds the dependencies for balance-related handlers.
type BalancesHandler struct {
	Store storage.BalanceStore
}

// NewBalancesHandler creates a new BalancesHandler.
func NewBalancesHandler(store storage.BalanceStore) *BalancesHandler {
	return &BalancesHandler{Store: store}
}

type balanceResponse struct {
	OwnerID     string `json:"owner_id"`
	BalanceType string `json:"balance_type"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
}

// GetBalance returns the authenticated buyer's wallet amount. A buyer who
// has never deposited simply has a zero wallet, not an error.
func (h *BalancesHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	balanceType := models.DefaultBalanceType(models.OwnerBuyer)
	balance, err := h.Store.GetBalance(r.Context(), userID, models.OwnerBuyer, balanceType)
	if err != nil {
		if errors.Is(err, storage.ErrBalanceNotFound) {
			writeJSON(w, http.StatusOK, balanceResponse{
				OwnerID:     userID,
				BalanceType: string(balanceType),
				Amount:      "0.00",
				Status:      string(models.BalanceActive),
			})
			return
		}
		http.Error(w, fmt.Sprintf("Failed to retrieve balance: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		OwnerID:     balance.OwnerID,
		BalanceType: string(balance.Type),
		Amount:      balance.Amount.StringFixed(2),
		Status:      string(balance.Status),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
