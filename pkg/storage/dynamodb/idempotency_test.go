package dynamodb

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
	"github.com/streampass/wallet-deposits/pkg/storage/dynamodb/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testKey = "deposit_balance_update:pi_123:buyer-1"

func TestCreateRecord(t *testing.T) {
	t.Run("Acquires The Lock", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

		mockClient.On("PutItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.PutItemInput) bool {
			// The insert doubles as the lock: it must be conditional on no
			// live record holding the key.
			return strings.Contains(*input.ConditionExpression, "attribute_not_exists(#key)") &&
				strings.Contains(*input.ConditionExpression, "expires_at < :now")
		})).Return(&dynamodb.PutItemOutput{}, nil).Once()

		err := store.CreateRecord(context.Background(), testKey, 30*time.Minute)

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})

	t.Run("Held Lock Is Reported As Key Exists", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

		mockClient.On("PutItem", mock.Anything, mock.Anything).
			Return(nil, &types.ConditionalCheckFailedException{}).Once()

		err := store.CreateRecord(context.Background(), testKey, 30*time.Minute)

		assert.ErrorIs(t, err, storage.ErrIdempotencyKeyExists)
		mockClient.AssertExpectations(t)
	})
}

func TestGetIdempotencyRecord(t *testing.T) {
	t.Run("Missing Record Is Nil Not Error", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

		mockClient.On("GetItem", mock.Anything, mock.Anything).
			Return(&dynamodb.GetItemOutput{Item: nil}, nil).Once()

		record, err := store.GetIdempotencyRecord(context.Background(), testKey)

		assert.NoError(t, err)
		assert.Nil(t, record)
		mockClient.AssertExpectations(t)
	})

	t.Run("Existing Record Round-Trips", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

		expires := time.Now().Add(10 * time.Minute).Unix()
		itemAV, err := attributevalue.MarshalMap(idempotencyItem{
			Key:       testKey,
			Status:    string(models.IdempotencyCompleted),
			Result:    `{"balance":"125.00"}`,
			ExpiresAt: expires,
			CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
			UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		})
		require.NoError(t, err)
		mockClient.On("GetItem", mock.Anything, mock.Anything).
			Return(&dynamodb.GetItemOutput{Item: itemAV}, nil).Once()

		record, err := store.GetIdempotencyRecord(context.Background(), testKey)

		require.NoError(t, err)
		assert.Equal(t, models.IdempotencyCompleted, record.Status)
		assert.Equal(t, json.RawMessage(`{"balance":"125.00"}`), record.Result)
		assert.Equal(t, expires, record.ExpiresAt.Unix())
		mockClient.AssertExpectations(t)
	})
}

func TestUpdateRecord(t *testing.T) {
	t.Run("Transitions To Completed With Result", func(t *testing.T) {
		mockClient := new(mocks.DynamoDBAPI)
		store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

		mockClient.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input *dynamodb.UpdateItemInput) bool {
			status, ok := input.ExpressionAttributeValues[":status"].(*types.AttributeValueMemberS)
			return ok && status.Value == string(models.IdempotencyCompleted) &&
				strings.Contains(*input.ConditionExpression, "attribute_exists(#key)")
		})).Return(&dynamodb.UpdateItemOutput{}, nil).Once()

		err := store.UpdateRecord(context.Background(), testKey, models.IdempotencyCompleted,
			json.RawMessage(`{"balance":"125.00"}`), "")

		assert.NoError(t, err)
		mockClient.AssertExpectations(t)
	})
}

func TestDeleteRecord(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

	mockClient.On("DeleteItem", mock.Anything, mock.Anything).
		Return(&dynamodb.DeleteItemOutput{}, nil).Once()

	err := store.DeleteRecord(context.Background(), testKey)

	assert.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestListExpiredRecords(t *testing.T) {
	mockClient := new(mocks.DynamoDBAPI)
	store := &Store{Client: mockClient, IdempotencyTableName: "idempotency"}

	mockClient.On("Scan", mock.Anything, mock.MatchedBy(func(input *dynamodb.ScanInput) bool {
		return strings.Contains(*input.FilterExpression, "expires_at < :now")
	})).Return(&dynamodb.ScanOutput{
		Items: []map[string]types.AttributeValue{
			{"key": &types.AttributeValueMemberS{Value: "key-1"}},
			{"key": &types.AttributeValueMemberS{Value: "key-2"}},
		},
	}, nil).Once()

	keys, err := store.ListExpiredRecords(context.Background(), time.Now(), 100)

	assert.NoError(t, err)
	assert.Equal(t, []string{"key-1", "key-2"}, keys)
	mockClient.AssertExpectations(t)
}
