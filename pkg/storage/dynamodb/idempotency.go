package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// idempotencyItem is the persisted shape of an idempotency record. The ttl
// attribute drives DynamoDB's physical purge; expires_at drives the logical
// one and is checked on every read and insert.
type idempotencyItem struct {
	Key       string `dynamodbav:"key"`
	Status    string `dynamodbav:"status"`
	Result    string `dynamodbav:"result,omitempty"`
	Error     string `dynamodbav:"error,omitempty"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
	TTL       int64  `dynamodbav:"ttl"`
}

func (i *idempotencyItem) toModel() *models.IdempotencyRecord {
	rec := &models.IdempotencyRecord{
		Key:       i.Key,
		Status:    models.IdempotencyStatus(i.Status),
		Error:     i.Error,
		ExpiresAt: time.Unix(i.ExpiresAt, 0),
	}
	if i.Result != "" {
		rec.Result = json.RawMessage(i.Result)
	}
	if t, err := time.Parse(time.RFC3339Nano, i.CreatedAt); err == nil {
		rec.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, i.UpdatedAt); err == nil {
		rec.UpdatedAt = t
	}
	return rec
}

// GetIdempotencyRecord retrieves a record by key. A missing record yields
// (nil, nil); TTL handling is the guard's responsibility.
func (s *Store) GetIdempotencyRecord(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.IdempotencyTableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get idempotency record from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, nil
	}

	var item idempotencyItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idempotency record: %w", err)
	}
	return item.toModel(), nil
}

// CreateRecord inserts a fresh processing record. The conditional put is the
// mutual-exclusion lock: it succeeds only if no live record holds the key. An
// expired leftover record is overwritten rather than treated as a conflict.
func (s *Store) CreateRecord(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now()
	item := idempotencyItem{
		Key:       key,
		Status:    string(models.IdempotencyProcessing),
		ExpiresAt: now.Add(ttl).Unix(),
		CreatedAt: now.UTC().Format(time.RFC3339Nano),
		UpdatedAt: now.UTC().Format(time.RFC3339Nano),
		// Keep the physical record around past logical expiry for diagnosis.
		TTL: now.Add(ttl + 24*time.Hour).Unix(),
	}

	itemAV, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal idempotency record: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.IdempotencyTableName),
		Item:                itemAV,
		ConditionExpression: aws.String("attribute_not_exists(#key) OR expires_at < :now"),
		ExpressionAttributeNames: map[string]string{
			"#key": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrIdempotencyKeyExists
		}
		return fmt.Errorf("failed to create idempotency record in DynamoDB: %w", err)
	}

	return nil
}

// UpdateRecord transitions an existing record to a terminal status, storing
// the opaque result payload or the error detail.
func (s *Store) UpdateRecord(ctx context.Context, key string, status models.IdempotencyStatus, result json.RawMessage, errDetail string) error {
	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.IdempotencyTableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
		UpdateExpression:    aws.String("SET #status = :status, #result = :result, #error = :error, updated_at = :now"),
		ConditionExpression: aws.String("attribute_exists(#key)"),
		ExpressionAttributeNames: map[string]string{
			"#key":    "key",
			"#status": "status",
			"#result": "result",
			"#error":  "error",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: string(status)},
			":result": &types.AttributeValueMemberS{Value: string(result)},
			":error":  &types.AttributeValueMemberS{Value: errDetail},
			":now":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to update idempotency record in DynamoDB: %w", err)
	}
	return nil
}

// DeleteRecord removes a record. Deleting an absent record is not an error.
func (s *Store) DeleteRecord(ctx context.Context, key string) error {
	_, err := s.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.IdempotencyTableName),
		Key: map[string]types.AttributeValue{
			"key": &types.AttributeValueMemberS{Value: key},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete idempotency record from DynamoDB: %w", err)
	}
	return nil
}

// ListExpiredRecords returns keys of records whose logical TTL passed before
// now, for the sweeper to purge.
func (s *Store) ListExpiredRecords(ctx context.Context, now time.Time, limit int32) ([]string, error) {
	result, err := s.Client.Scan(ctx, &dynamodb.ScanInput{
		TableName:            aws.String(s.IdempotencyTableName),
		FilterExpression:     aws.String("expires_at < :now"),
		ProjectionExpression: aws.String("#key"),
		ExpressionAttributeNames: map[string]string{
			"#key": "key",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: strconv.FormatInt(now.Unix(), 10)},
		},
		Limit: aws.Int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan idempotency table: %w", err)
	}

	keys := make([]string, 0, len(result.Items))
	for _, item := range result.Items {
		if av, ok := item["key"].(*types.AttributeValueMemberS); ok {
			keys = append(keys, av.Value)
		}
	}
	return keys, nil
}
