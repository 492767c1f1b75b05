package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/money"
	"github.com/streampass/wallet-deposits/pkg/storage"
)

// ownerKey derives the balance partition key. Embedding the owner kind in the
// key is what enforces the buyer/seller mutual exclusion at write time.
func ownerKey(kind models.OwnerKind, ownerID string) string {
	return fmt.Sprintf("%s#%s", kind, ownerID)
}

func balanceKey(ownerID string, kind models.OwnerKind, balanceType models.BalanceType) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"owner":        &types.AttributeValueMemberS{Value: ownerKey(kind, ownerID)},
		"balance_type": &types.AttributeValueMemberS{Value: string(balanceType)},
	}
}

// balanceItem builds the attribute map by hand. The amount must be stored as
// a DynamoDB Number so the atomic "amount = amount + :delta" expression works;
// DynamoDB numbers are exact decimals, so no precision is lost.
func balanceItem(b *models.Balance) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"owner":        &types.AttributeValueMemberS{Value: ownerKey(b.OwnerKind, b.OwnerID)},
		"balance_type": &types.AttributeValueMemberS{Value: string(b.Type)},
		"owner_id":     &types.AttributeValueMemberS{Value: b.OwnerID},
		"owner_kind":   &types.AttributeValueMemberS{Value: string(b.OwnerKind)},
		"amount":       &types.AttributeValueMemberN{Value: b.Amount.StringFixed(2)},
		"status":       &types.AttributeValueMemberS{Value: string(b.Status)},
		"last_updated": &types.AttributeValueMemberS{Value: b.LastUpdated.UTC().Format(time.RFC3339Nano)},
		"created_at":   &types.AttributeValueMemberS{Value: b.CreatedAt.UTC().Format(time.RFC3339Nano)},
	}
}

func unmarshalBalance(item map[string]types.AttributeValue) (*models.Balance, error) {
	b := &models.Balance{}

	s := func(name string) string {
		if av, ok := item[name].(*types.AttributeValueMemberS); ok {
			return av.Value
		}
		return ""
	}

	b.OwnerID = s("owner_id")
	b.OwnerKind = models.OwnerKind(s("owner_kind"))
	b.Type = models.BalanceType(s("balance_type"))
	b.Status = models.BalanceStatus(s("status"))

	amountAV, ok := item["amount"].(*types.AttributeValueMemberN)
	if !ok {
		return nil, fmt.Errorf("balance item missing amount attribute")
	}
	amount, err := decimal.NewFromString(amountAV.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse balance amount: %w", err)
	}
	b.Amount = amount

	if b.LastUpdated, err = time.Parse(time.RFC3339Nano, s("last_updated")); err != nil {
		return nil, fmt.Errorf("failed to parse last_updated: %w", err)
	}
	if b.CreatedAt, err = time.Parse(time.RFC3339Nano, s("created_at")); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return b, nil
}

// GetBalance retrieves the (owner, balanceType) record from DynamoDB.
func (s *Store) GetBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType) (*models.Balance, error) {
	result, err := s.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.BalancesTableName),
		Key:       balanceKey(ownerID, kind, balanceType),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get balance from DynamoDB: %w", err)
	}
	if result.Item == nil {
		return nil, storage.ErrBalanceNotFound
	}
	return unmarshalBalance(result.Item)
}

// FindOrCreateBalance returns the balance record for the owner, lazily
// creating it with a zero amount on first access.
func (s *Store) FindOrCreateBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType) (*models.Balance, error) {
	if balanceType == "" {
		balanceType = models.DefaultBalanceType(kind)
	}

	balance, err := s.GetBalance(ctx, ownerID, kind, balanceType)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, storage.ErrBalanceNotFound) {
		return nil, err
	}

	now := time.Now()
	fresh := &models.Balance{
		OwnerID:     ownerID,
		OwnerKind:   kind,
		Type:        balanceType,
		Amount:      decimal.Zero,
		Status:      models.BalanceActive,
		LastUpdated: now,
		CreatedAt:   now,
	}

	_, err = s.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.BalancesTableName),
		Item:                balanceItem(fresh),
		ConditionExpression: aws.String("attribute_not_exists(#owner)"),
		ExpressionAttributeNames: map[string]string{
			"#owner": "owner",
		},
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			// Lost the creation race; the winner's record is authoritative.
			return s.GetBalance(ctx, ownerID, kind, balanceType)
		}
		return nil, fmt.Errorf("failed to create balance in DynamoDB: %w", err)
	}

	return fresh, nil
}

// UpdateBalance atomically applies an add or subtract to an existing balance.
// The mutation, the active-status gate, and the non-negative invariant are a
// single conditional update expression, so concurrent credits cannot lose
// updates and a rejected subtract leaves the stored amount untouched.
func (s *Store) UpdateBalance(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType, amount decimal.Decimal, op models.BalanceOperation) (*models.Balance, error) {
	amount = money.Round2(amount)
	if !amount.IsPositive() {
		return nil, fmt.Errorf("balance update amount must be positive, got %s", amount)
	}

	delta := amount
	condition := "attribute_exists(#owner) AND #status = :active"
	values := map[string]types.AttributeValue{
		":active": &types.AttributeValueMemberS{Value: string(models.BalanceActive)},
		":now":    &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
	}

	switch op {
	case models.OperationAdd:
	case models.OperationSubtract:
		delta = amount.Neg()
		condition += " AND amount >= :abs"
		values[":abs"] = &types.AttributeValueMemberN{Value: amount.StringFixed(2)}
	default:
		return nil, fmt.Errorf("unknown balance operation %q", op)
	}
	values[":delta"] = &types.AttributeValueMemberN{Value: delta.StringFixed(2)}

	result, err := s.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.BalancesTableName),
		Key:                 balanceKey(ownerID, kind, balanceType),
		UpdateExpression:    aws.String("SET amount = amount + :delta, last_updated = :now"),
		ConditionExpression: aws.String(condition),
		ExpressionAttributeNames: map[string]string{
			"#owner":  "owner",
			"#status": "status",
		},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var condCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condCheckFailed) {
			return nil, s.classifyBalanceFailure(ctx, ownerID, kind, balanceType)
		}
		return nil, fmt.Errorf("failed to update balance in DynamoDB: %w", err)
	}

	return unmarshalBalance(result.Attributes)
}

// classifyBalanceFailure turns a conditional-check failure into the specific
// ledger error. The mutation already failed atomically; this read is only for
// diagnosis.
func (s *Store) classifyBalanceFailure(ctx context.Context, ownerID string, kind models.OwnerKind, balanceType models.BalanceType) error {
	balance, err := s.GetBalance(ctx, ownerID, kind, balanceType)
	if err != nil {
		if errors.Is(err, storage.ErrBalanceNotFound) {
			return storage.ErrBalanceNotFound
		}
		return err
	}
	if balance.Status != models.BalanceActive {
		return storage.ErrBalanceNotActive
	}
	return storage.ErrInsufficientBalance
}
