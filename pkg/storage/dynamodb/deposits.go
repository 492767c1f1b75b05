package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/money"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

const (
	externalRefIndex  = "external_ref-index"
	depositUserIndex  = "user_id-index"
	stuckDepositIndex = "status-updated_at-index"
)

// depositItem is the persisted shape of a deposit. Amounts are stored as
// fixed two-place decimal strings; no arithmetic happens on them in the
// database.
type depositItem struct {
	ID              string `dynamodbav:"id"`
	UserID          string `dynamodbav:"user_id"`
	ExternalRef     string `dynamodbav:"external_ref"`
	RequestedAmount string `dynamodbav:"requested_amount"`
	VerifiedAmount  string `dynamodbav:"verified_amount,omitempty"`
	Status          string `dynamodbav:"status"`
	IdempotencyKey  string `dynamodbav:"idempotency_key,omitempty"`
	ActivityID      string `dynamodbav:"activity_id,omitempty"`
	ProviderStatus  string `dynamodbav:"provider_status,omitempty"`
	FailureReason   string `dynamodbav:"failure_reason,omitempty"`
	InitiatedAt     string `dynamodbav:"initiated_at"`
	UpdatedAt       string `dynamodbav:"updated_at"`
	CompletedAt     string `dynamodbav:"completed_at,omitempty"`
}

func toDepositItem(d *models.Deposit) *depositItem {
	item := &depositItem{
		ID:              d.ID,
		UserID:          d.UserID,
		ExternalRef:     d.ExternalRef,
		RequestedAmount: d.RequestedAmount.StringFixed(2),
		Status:          string(d.Status),
		IdempotencyKey:  d.IdempotencyKey,
		ActivityID:      d.ActivityID,
		ProviderStatus:  d.ProviderStatus,
		FailureReason:   d.FailureReason,
		InitiatedAt:     d.InitiatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:       d.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !d.VerifiedAmount.IsZero() {
		item.VerifiedAmount = d.VerifiedAmount.StringFixed(2)
	}
	if d.CompletedAt != nil {
		item.CompletedAt = d.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return item
}

func (i *depositItem) toModel() (*models.Deposit, error) {
	d := &models.Deposit{
		ID:             i.ID,
		UserID:         i.UserID,
		ExternalRef:    i.ExternalRef,
		Status:         models.DepositStatus(i.Status),
		IdempotencyKey: i.IdempotencyKey,
		ActivityID:     i.ActivityID,
		ProviderStatus: i.ProviderStatus,
		FailureReason:  i.FailureReason,
	}

	var err error
	if d.RequestedAmount, err = money.Parse(i.RequestedAmount); err != nil {
		return nil, fmt.Errorf("failed to parse requested amount: %w", err)
	}
	if i.VerifiedAmount != "" {
		if d.VerifiedAmount, err = money.Parse(i.VerifiedAmount); err != nil {
			return nil, fmt.Errorf("failed to parse verified amount: %w", err)
		}
	}
	if d.InitiatedAt, err = time.Parse(time.RFC3339Nano, i.InitiatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse initiated_at: %w", err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, i.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	if i.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, i.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completed_at: %w", err)
		}
		d.CompletedAt = &t
	}

	return d, nil
}

// CreateDeposit persists a new deposit record.
func (s *Store) CreateDeposit(ctx context.Context, deposit *models.Deposit) (*models.Deposit, error) {
	itemAV, err := attributevalue.MarshalMap(toDepositItem(deposit))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deposit: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.DepositsTableName),
		Item:                itemAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("deposit %s already exists", deposit.ID)
		}
		return nil, fmt.Errorf("failed to create deposit in DynamoDB: %w", err)
	}

	return deposit, nil
}

// GetDeposit retrieves a deposit by its ID.
func (s *Store) GetDeposit(ctx context.Context, depositID string) (*models.Deposit, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.DepositsTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: depositID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrDepositNotFound
	}

	var item depositItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deposit: %w", err)
	}
	return item.toModel()
}

// GetDepositByRef queries the external-ref index for the deposit referencing
// this payment reference, regardless of its state.
func (s *Store) GetDepositByRef(ctx context.Context, externalRef string) (*models.Deposit, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.DepositsTableName),
		IndexName:              aws.String(externalRefIndex),
		KeyConditionExpression: aws.String("external_ref = :ref"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref": &types.AttributeValueMemberS{Value: externalRef},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits by external ref: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, storage.ErrDepositNotFound
	}

	var item depositItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deposit: %w", err)
	}
	return item.toModel()
}

// GetCompletedDepositByRef queries the external-ref index for a completed
// deposit referencing this payment reference.
func (s *Store) GetCompletedDepositByRef(ctx context.Context, externalRef string) (*models.Deposit, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.DepositsTableName),
		IndexName:              aws.String(externalRefIndex),
		KeyConditionExpression: aws.String("external_ref = :ref"),
		FilterExpression:       aws.String("#status = :completed"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ref":       &types.AttributeValueMemberS{Value: externalRef},
			":completed": &types.AttributeValueMemberS{Value: string(models.DepositCompleted)},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits by external ref: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, storage.ErrDepositNotFound
	}

	var item depositItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal deposit: %w", err)
	}
	return item.toModel()
}

// GetStuckDeposits retrieves deposits that have sat in the processing state
// for longer than maxAge.
func (s *Store) GetStuckDeposits(ctx context.Context, maxAge time.Duration) ([]models.Deposit, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(time.RFC3339Nano)

	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.DepositsTableName),
		IndexName:              aws.String(stuckDepositIndex),
		KeyConditionExpression: aws.String("#status = :processing AND updated_at < :cutoff"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(models.DepositProcessing)},
			":cutoff":     &types.AttributeValueMemberS{Value: cutoff},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query stuck deposits: %w", err)
	}

	return unmarshalDeposits(result.Items)
}

// ListDepositsByUserID retrieves a user's deposits, most recent first.
func (s *Store) ListDepositsByUserID(ctx context.Context, userID string) ([]models.Deposit, error) {
	result, err := s.Client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.DepositsTableName),
		IndexName:              aws.String(depositUserIndex),
		KeyConditionExpression: aws.String("user_id = :user_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user_id": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query deposits by user: %w", err)
	}

	return unmarshalDeposits(result.Items)
}

func unmarshalDeposits(items []map[string]types.AttributeValue) ([]models.Deposit, error) {
	deposits := make([]models.Deposit, 0, len(items))
	for _, raw := range items {
		var item depositItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal deposit: %w", err)
		}
		d, err := item.toModel()
		if err != nil {
			return nil, err
		}
		deposits = append(deposits, *d)
	}
	return deposits, nil
}

// UpdateDepositStatus transitions a deposit to a new status, recording the
// verified amount and provider status on completion or the failure reason on
// failure.
func (s *Store) UpdateDepositStatus(ctx context.Context, depositID string, update storage.DepositUpdate) error {
	now := time.Now().UTC()

	expr := "SET #status = :status, updated_at = :now"
	names := map[string]string{"#status": "status"}
	values := map[string]types.AttributeValue{
		":status": &types.AttributeValueMemberS{Value: string(update.Status)},
		":now":    &types.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
	}

	if !update.VerifiedAmount.IsZero() {
		expr += ", verified_amount = :verified"
		values[":verified"] = &types.AttributeValueMemberS{Value: update.VerifiedAmount.StringFixed(2)}
	}
	if update.ProviderStatus != "" {
		expr += ", provider_status = :provider_status"
		values[":provider_status"] = &types.AttributeValueMemberS{Value: update.ProviderStatus}
	}
	if update.FailureReason != "" {
		expr += ", failure_reason = :reason"
		values[":reason"] = &types.AttributeValueMemberS{Value: update.FailureReason}
	}
	if update.Status == models.DepositCompleted || update.Status == models.DepositFailed {
		expr += ", completed_at = :now"
	}

	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.DepositsTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: depositID},
		},
		UpdateExpression:          aws.String(expr),
		ConditionExpression:       aws.String("attribute_exists(id)"),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return storage.ErrDepositNotFound
		}
		return fmt.Errorf("failed to update deposit in DynamoDB: %w", err)
	}

	return nil
}
