// Package activity maintains the append-only audit trail of user-facing
// events. A financial activity is the user-visible projection of a ledger
// mutation; it reflects the outcome but is never part of the transactional
// unit that produced it.
package activity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// CreateParams describes a new activity.
type CreateParams struct {
	Type         string
	Category     models.ActivityCategory
	Owner        models.Actor
	Counterparty *models.Actor
	Metadata     map[string]string
	References   map[string]string
	Visibility   models.ActivityVisibility
}

// Trail records and transitions activities.
type Trail struct {
	store storage.ActivityStore
}

// NewTrail creates a Trail.
func NewTrail(store storage.ActivityStore) *Trail {
	return &Trail{store: store}
}

// Record creates a new pending activity.
func (t *Trail) Record(ctx context.Context, params CreateParams) (*models.Activity, error) {
	if params.Owner.ID == "" {
		return nil, fmt.Errorf("activity owner is required")
	}
	if params.Visibility == "" {
		params.Visibility = models.VisibilityPrivate
	}

	now := time.Now()
	activity := &models.Activity{
		ID:           uuid.New().String(),
		Type:         params.Type,
		Category:     params.Category,
		Status:       models.ActivityPending,
		Owner:        params.Owner,
		Counterparty: params.Counterparty,
		Metadata:     params.Metadata,
		References:   params.References,
		Visibility:   params.Visibility,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	return t.store.CreateActivity(ctx, activity)
}

// UpdateStatus transitions an activity. Re-applying the status an activity
// already holds is a safe no-op, so callers may retry freely.
func (t *Trail) UpdateStatus(ctx context.Context, activityID string, status models.ActivityStatus) error {
	return t.store.UpdateActivityStatus(ctx, activityID, status)
}

// ListByOwner retrieves an owner's recent activities.
func (t *Trail) ListByOwner(ctx context.Context, ownerID string, limit int32) ([]models.Activity, error) {
	return t.store.ListActivitiesByOwner(ctx, ownerID, limit)
}
