package dynamodb

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
	"github.com/streampass/wallet-deposits/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testDeposit() *models.Deposit {
	return &models.Deposit{
		ID:              uuid.New().String(),
		UserID:          "buyer-1",
		ExternalRef:     "pi_123",
		RequestedAmount: decimal.RequireFromString("25.00"),
		Status:          models.DepositInitiated,
		ActivityID:      "act-1",
		InitiatedAt:     time.Now(),
		UpdatedAt:       time.Now(),
	}
}

func mustMarshalDeposit(t *testing.T, d *models.Deposit) map[string]types.AttributeValue {
	t.Helper()
	itemAV, err := attributevalue.MarshalMap(toDepositItem(d))
	require.NoError(t, err)
	return itemAV
}

func TestCreateDeposit(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
			return strings.Contains(*input.ConditionExpression, "attribute_not_exists(id)")
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		created, err := store.CreateDeposit(context.Background(), testDeposit())

		assert.NoError(t, err)
		assert.NotNil(t, created)
		mockClient.AssertExpectations(t)
	})

	t.Run("Duplicate ID", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("PutItem", mock.Anything, mock.Anything).
			Return(nil, &types.ConditionalCheckFailedException{}).Once()

		_, err := store.CreateDeposit(context.Background(), testDeposit())

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")
		mockClient.AssertExpectations(t)
	})
}

func TestGetDepositByRef(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		deposit := testDeposit()
		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
			return *input.IndexName == externalRefIndex && input.FilterExpression == nil
		})).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{mustMarshalDeposit(t, deposit)},
		}, nil).Once()

		found, err := store.GetDepositByRef(context.Background(), "pi_123")

		require.NoError(t, err)
		assert.Equal(t, deposit.ID, found.ID)
		assert.Equal(t, models.DepositInitiated, found.Status)
		mockClient.AssertExpectations(t)
	})

	t.Run("Not Found", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("Query", mock.Anything, mock.Anything).
			Return(&dynamodb.QueryOutput{}, nil).Once()

		_, err := store.GetDepositByRef(context.Background(), "pi_missing")

		assert.ErrorIs(t, err, storage.ErrDepositNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestGetCompletedDepositByRef(t *testing.T) {
	t.Run("Filters To Completed", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		deposit := testDeposit()
		deposit.Status = models.DepositCompleted
		deposit.VerifiedAmount = decimal.RequireFromString("25.00")

		mockClient.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
			return *input.IndexName == externalRefIndex &&
				strings.Contains(*input.FilterExpression, "#status = :completed")
		})).Return(&dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{mustMarshalDeposit(t, deposit)},
		}, nil).Once()

		found, err := store.GetCompletedDepositByRef(context.Background(), "pi_123")

		require.NoError(t, err)
		assert.Equal(t, models.DepositCompleted, found.Status)
		assert.Equal(t, "25.00", found.VerifiedAmount.StringFixed(2))
		mockClient.AssertExpectations(t)
	})

	t.Run("No Completed Deposit", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("Query", mock.Anything, mock.Anything).
			Return(&dynamodb.QueryOutput{}, nil).Once()

		_, err := store.GetCompletedDepositByRef(context.Background(), "pi_123")

		assert.ErrorIs(t, err, storage.ErrDepositNotFound)
		mockClient.AssertExpectations(t)
	})
}

func TestGetStuckDeposits(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	store := &Store{Client: mockClient, DepositsTableName: "deposits"}

	stuck := testDeposit()
	stuck.Status = models.DepositProcessing

	mockClient.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		return *input.IndexName == stuckDepositIndex &&
			strings.Contains(*input.KeyConditionExpression, "updated_at < :cutoff")
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{mustMarshalDeposit(t, stuck)},
	}, nil).Once()

	deposits, err := store.GetStuckDeposits(context.Background(), 45*time.Minute)

	require.NoError(t, err)
	require.Len(t, deposits, 1)
	assert.Equal(t, models.DepositProcessing, deposits[0].Status)
	mockClient.AssertExpectations(t)
}

func TestListDepositsByUserID(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	store := &Store{Client: mockClient, DepositsTableName: "deposits"}

	mockClient.On("Query", mock.Anything, mock.MatchedBy(func(input *dynamodb.QueryInput) bool {
		return *input.IndexName == depositUserIndex && !*input.ScanIndexForward
	})).Return(&dynamodb.QueryOutput{
		Items: []map[string]types.AttributeValue{mustMarshalDeposit(t, testDeposit())},
	}, nil).Once()

	deposits, err := store.ListDepositsByUserID(context.Background(), "buyer-1")

	require.NoError(t, err)
	assert.Len(t, deposits, 1)
	mockClient.AssertExpectations(t)
}

func TestUpdateDepositStatus(t *testing.T) {
	t.Run("Completion Records Amount And Timestamp", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
			return strings.Contains(*input.UpdateExpression, "verified_amount = :verified") &&
				strings.Contains(*input.UpdateExpression, "completed_at = :now")
		})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

		err := store.UpdateDepositStatus(context.Background(), "dep-1", storage.DepositUpdate{
			Status:         models.DepositCompleted,
			VerifiedAmount: decimal.RequireFromString("25.00"),
			ProviderStatus: "succeeded",
		})

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Interim Transition Leaves Completion Fields Alone", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
			return !strings.Contains(*input.UpdateExpression, "completed_at")
		})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

		err := store.UpdateDepositStatus(context.Background(), "dep-1", storage.DepositUpdate{
			Status: models.DepositProcessing,
		})

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Missing Deposit", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, DepositsTableName: "deposits"}

		mockClient.On("UpdateItem", mock.Anything, mock.Anything).
			Return(nil, &types.ConditionalCheckFailedException{}).Once()

		err := store.UpdateDepositStatus(context.Background(), "dep-missing", storage.DepositUpdate{
			Status: models.DepositFailed,
		})

		assert.ErrorIs(t, err, storage.ErrDepositNotFound)
		mockClient.AssertExpectations(t)
	})
}
