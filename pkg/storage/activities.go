package storage

import (
	"context"

	"github.com/streampass/wallet-deposits/pkg/models"
)

// ActivityStore persists the append-only audit trail. Activities are created
// pending, moved to a terminal status, and never deleted.
type ActivityStore interface {
	// CreateActivity persists a new activity record.
	CreateActivity(ctx context.Context, activity *models.Activity) (*models.Activity, error)

	// UpdateActivityStatus transitions an activity. Re-applying the status an
	// activity already holds is a safe no-op.
	UpdateActivityStatus(ctx context.Context, activityID string, status models.ActivityStatus) error

	// ListActivitiesByOwner retrieves an owner's activities, most recent first.
	ListActivitiesByOwner(ctx context.Context, ownerID string, limit int32) ([]models.Activity, error)
}
