package activities

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/auth"
	"github.com/streampass/wallet-deposits/pkg/models"
	storagemocks "github.com/streampass/wallet-deposits/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestListActivities(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockStore := new(storagemocks.Storage)
		handler := NewActivitiesHandler(activity.NewTrail(mockStore))

		mockStore.On("ListActivitiesByOwner", mock.Anything, "buyer-1", int32(defaultListLimit)).
			Return([]models.Activity{
				{ID: "act-1", Type: "wallet_deposit", Category: models.CategoryFinancial, Status: models.ActivityCompleted},
			}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/activities", nil)
		req = req.WithContext(auth.WithUserID(context.Background(), "buyer-1"))
		rr := httptest.NewRecorder()
		handler.ListActivities(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		var activities []models.Activity
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &activities))
		require.Len(t, activities, 1)
		assert.Equal(t, "act-1", activities[0].ID)
		mockStore.AssertExpectations(t)
	})

	t.Run("Explicit Limit", func(t *testing.T) {
		mockStore := new(storagemocks.Storage)
		handler := NewActivitiesHandler(activity.NewTrail(mockStore))

		mockStore.On("ListActivitiesByOwner", mock.Anything, "buyer-1", int32(5)).
			Return([]models.Activity{}, nil).Once()

		req := httptest.NewRequest(http.MethodGet, "/activities?limit=5", nil)
		req = req.WithContext(auth.WithUserID(context.Background(), "buyer-1"))
		rr := httptest.NewRecorder()
		handler.ListActivities(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		mockStore.AssertExpectations(t)
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		handler := NewActivitiesHandler(activity.NewTrail(new(storagemocks.Storage)))

		req := httptest.NewRequest(http.MethodGet, "/activities?limit=-3", nil)
		req = req.WithContext(auth.WithUserID(context.Background(), "buyer-1"))
		rr := httptest.NewRecorder()
		handler.ListActivities(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		handler := NewActivitiesHandler(activity.NewTrail(new(storagemocks.Storage)))

		req := httptest.NewRequest(http.MethodGet, "/activities", nil)
		rr := httptest.NewRecorder()
		handler.ListActivities(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}
