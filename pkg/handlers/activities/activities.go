// Package activities exposes the user-facing activity trail.
package activities

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/auth"
)

const defaultListLimit = 25

// ActivitiesHandler holds the dependencies for activity-related handlers.
type ActivitiesHandler struct {
	Trail *activity.Trail
}

// NewActivitiesHandler creates a new ActivitiesHandler.
func NewActivitiesHandler(trail *activity.Trail) *ActivitiesHandler {
	return &ActivitiesHandler{Trail: trail}
}

// ListActivities returns the authenticated user's recent activities.
func (h *ActivitiesHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		http.Error(w, "Unauthenticated", http.StatusUnauthorized)
		return
	}

	limit := int32(defaultListLimit)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = int32(parsed)
	}

	activities, err := h.Trail.ListByOwner(r.Context(), userID, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to retrieve activities: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(activities); err != nil {
		http.Error(w, fmt.Sprintf("Failed to write response: %v", err), http.StatusInternalServerError)
	}
}
