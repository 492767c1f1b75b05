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
	"github.com/streampass/wallet-deposits/pkg/storage"
)

const activityOwnerIndex = "owner_id-created_at-index"

type activityItem struct {
	ID           string            `dynamodbav:"id"`
	Type         string            `dynamodbav:"type"`
	Category     string            `dynamodbav:"category"`
	Status       string            `dynamodbav:"status"`
	Owner        models.Actor      `dynamodbav:"owner"`
	OwnerID      string            `dynamodbav:"owner_id"`
	Counterparty *models.Actor     `dynamodbav:"counterparty,omitempty"`
	Metadata     map[string]string `dynamodbav:"metadata,omitempty"`
	References   map[string]string `dynamodbav:"references,omitempty"`
	Visibility   string            `dynamodbav:"visibility"`
	CreatedAt    string            `dynamodbav:"created_at"`
	UpdatedAt    string            `dynamodbav:"updated_at"`
	CompletedAt  string            `dynamodbav:"completed_at,omitempty"`
}

func toActivityItem(a *models.Activity) *activityItem {
	item := &activityItem{
		ID:           a.ID,
		Type:         a.Type,
		Category:     string(a.Category),
		Status:       string(a.Status),
		Owner:        a.Owner,
		OwnerID:      a.Owner.ID,
		Counterparty: a.Counterparty,
		Metadata:     a.Metadata,
		References:   a.References,
		Visibility:   string(a.Visibility),
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:    a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if a.CompletedAt != nil {
		item.CompletedAt = a.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	return item
}

func (i *activityItem) toModel() (*models.Activity, error) {
	a := &models.Activity{
		ID:           i.ID,
		Type:         i.Type,
		Category:     models.ActivityCategory(i.Category),
		Status:       models.ActivityStatus(i.Status),
		Owner:        i.Owner,
		Counterparty: i.Counterparty,
		Metadata:     i.Metadata,
		References:   i.References,
		Visibility:   models.ActivityVisibility(i.Visibility),
	}

	var err error
	if a.CreatedAt, err = time.Parse(time.RFC3339Nano, i.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse activity created_at: %w", err)
	}
	if a.UpdatedAt, err = time.Parse(time.RFC3339Nano, i.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse activity updated_at: %w", err)
	}
	if i.CompletedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, i.CompletedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse activity completed_at: %w", err)
		}
		a.CompletedAt = &t
	}

	return a, nil
}

// CreateActivity persists a new activity record.
func (s *Store) CreateActivity(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	itemAV, err := attributevalue.MarshalMap(toActivityItem(activity))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity: %w", err)
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.ActivitiesTableName),
		Item:                itemAV,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, fmt.Errorf("activity %s already exists", activity.ID)
		}
		return nil, fmt.Errorf("failed to create activity in DynamoDB: %w", err)
	}

	return activity, nil
}

// UpdateActivityStatus transitions an activity to a new status. The
// conditional update only fires while the activity is still pending or
// processing, or when the status would not change; re-applying a terminal
// status is therefore a safe no-op, and a finalized activity is never moved
// to a different terminal state.
func (s *Store) UpdateActivityStatus(ctx context.Context, activityID string, status models.ActivityStatus) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	expr := "SET #status = :status, updated_at = :now"
	values := map[string]types.AttributeValue{
		":status":     &types.AttributeValueMemberS{Value: string(status)},
		":now":        &types.AttributeValueMemberS{Value: now},
		":pending":    &types.AttributeValueMemberS{Value: string(models.ActivityPending)},
		":processing": &types.AttributeValueMemberS{Value: string(models.ActivityProcessing)},
	}
	if status.Terminal() {
		expr += ", completed_at = :now"
	}

	_, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.ActivitiesTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: activityID},
		},
		UpdateExpression:    aws.String(expr),
		ConditionExpression: aws.String("attribute_exists(id) AND (#status = :pending OR #status = :processing OR #status = :status)"),
		ExpressionAttributeNames: map[string]string{
			"#status": "status",
		},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return s.classifyActivityFailure(ctx, activityID, status)
		}
		return fmt.Errorf("failed to update activity in DynamoDB: %w", err)
	}

	return nil
}

// classifyActivityFailure distinguishes a missing activity from a repeated
// terminal transition, which is treated as success.
func (s *Store) classifyActivityFailure(ctx context.Context, activityID string, status models.ActivityStatus) error {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.ActivitiesTableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: activityID},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to get activity from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return storage.ErrActivityNotFound
	}

	var item activityItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return fmt.Errorf("failed to unmarshal activity: %w", err)
	}
	if item.Status == string(status) {
		return nil
	}
	return fmt.Errorf("activity %s already finalized as %s", activityID, item.Status)
}

// ListActivitiesByOwner retrieves an owner's activities, most recent first.
func (s *Store) ListActivitiesByOwner(ctx context.Context, ownerID string, limit int32) ([]models.Activity, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.ActivitiesTableName),
		IndexName:              aws.String(activityOwnerIndex),
		KeyConditionExpression: aws.String("owner_id = :owner_id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":owner_id": &types.AttributeValueMemberS{Value: ownerID},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	result, err := s.Client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities by owner: %w", err)
	}

	activities := make([]models.Activity, 0, len(result.Items))
	for _, raw := range result.Items {
		var item activityItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity: %w", err)
		}
		a, err := item.toModel()
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, nil
}
