package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	gwmocks "github.com/streampass/wallet-deposits/pkg/gateway/mocks"
	"github.com/streampass/wallet-deposits/pkg/models"
	"github.com/streampass/wallet-deposits/pkg/storage"
	"github.com/streampass/wallet-deposits/pkg/storage/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testConfig() gateway.VerifierConfig {
	return gateway.VerifierConfig{
		ExpectedMethod: gateway.MethodCard,
		MinDeposit:     decimal.RequireFromString("1.00"),
		MaxDeposit:     decimal.RequireFromString("10000.00"),
		Tolerance:      decimal.RequireFromString("0.01"),
	}
}

func succeededIntent(userID string, amountMinor int64) *gateway.PaymentIntent {
	return &gateway.PaymentIntent{
		ID:                 "pi_123",
		Status:             gateway.StatusSucceeded,
		Amount:             amountMinor,
		Currency:           "usd",
		PaymentMethodTypes: []string{gateway.MethodCard},
		Metadata:           map[string]string{gateway.MetadataUserKey: userID},
	}
}

func TestVerifyPaymentIntent(t *testing.T) {
	expected := decimal.RequireFromString("50.00")

	t.Run("Valid Payment", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 5000), nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.True(t, result.Valid)
		assert.Equal(t, "50.00", result.Amount.StringFixed(2))
		mockProvider.AssertExpectations(t)
	})

	t.Run("Provider Error Is Structured Not Thrown", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(nil, errors.New("connection refused"))

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "payment verification failed")
	})

	t.Run("Not Found", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_missing").Return(nil, nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_missing", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "not found")
	})

	t.Run("Non-Success Status Reports Actual Status", func(t *testing.T) {
		intent := succeededIntent("user-1", 5000)
		intent.Status = "requires_payment_method"

		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(intent, nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "requires_payment_method")
	})

	t.Run("Wrong Owner", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("someone-else", 5000), nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "does not belong")
	})

	t.Run("Amount Outside Tolerance", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 10500), nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "amount mismatch")
	})

	t.Run("Amount Within Tolerance Passes", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 5001), nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.True(t, result.Valid)
	})

	t.Run("Wrong Method", func(t *testing.T) {
		intent := succeededIntent("user-1", 5000)
		intent.PaymentMethodTypes = []string{"bank_transfer"}

		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(intent, nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "user-1", &expected)

		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "payment method")
	})

	t.Run("No Owner Or Amount Supplied Skips Those Checks", func(t *testing.T) {
		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("anyone", 123456), nil)

		v := gateway.NewVerifier(mockProvider, new(mocks.Storage), testConfig())
		result := v.VerifyPaymentIntent(context.Background(), "pi_123", "", nil)

		assert.True(t, result.Valid)
	})
}

func TestIsPaymentAlreadyProcessed(t *testing.T) {
	t.Run("Processed", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(&models.Deposit{ID: "dep-1"}, nil)

		v := gateway.NewVerifier(new(gwmocks.Provider), mockStore, testConfig())
		processed, err := v.IsPaymentAlreadyProcessed(context.Background(), "pi_123")

		assert.NoError(t, err)
		assert.True(t, processed)
	})

	t.Run("Not Processed", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(nil, storage.ErrDepositNotFound)

		v := gateway.NewVerifier(new(gwmocks.Provider), mockStore, testConfig())
		processed, err := v.IsPaymentAlreadyProcessed(context.Background(), "pi_123")

		assert.NoError(t, err)
		assert.False(t, processed)
	})

	t.Run("Storage Error", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(nil, errors.New("dynamodb unavailable"))

		v := gateway.NewVerifier(new(gwmocks.Provider), mockStore, testConfig())
		_, err := v.IsPaymentAlreadyProcessed(context.Background(), "pi_123")

		assert.Error(t, err)
	})
}

func TestValidateDepositPayment(t *testing.T) {
	amount := decimal.RequireFromString("50.00")

	t.Run("Already Processed Rejects Immediately", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(&models.Deposit{ID: "dep-1"}, nil)

		mockProvider := new(gwmocks.Provider)

		v := gateway.NewVerifier(mockProvider, mockStore, testConfig())
		result, err := v.ValidateDepositPayment(context.Background(), "pi_123", "user-1", amount)

		assert.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "already been processed")
		mockProvider.AssertNotCalled(t, "RetrievePaymentIntent", mock.Anything, mock.Anything)
	})

	t.Run("Below Minimum", func(t *testing.T) {
		small := decimal.RequireFromString("0.50")

		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(nil, storage.ErrDepositNotFound)

		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 50), nil)

		v := gateway.NewVerifier(mockProvider, mockStore, testConfig())
		result, err := v.ValidateDepositPayment(context.Background(), "pi_123", "user-1", small)

		assert.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "below the minimum")
	})

	t.Run("Above Maximum", func(t *testing.T) {
		huge := decimal.RequireFromString("20000.00")

		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(nil, storage.ErrDepositNotFound)

		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 2000000), nil)

		v := gateway.NewVerifier(mockProvider, mockStore, testConfig())
		result, err := v.ValidateDepositPayment(context.Background(), "pi_123", "user-1", huge)

		assert.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Contains(t, result.Error, "exceeds the maximum")
	})

	t.Run("Valid Deposit", func(t *testing.T) {
		mockStore := new(mocks.Storage)
		mockStore.On("GetCompletedDepositByRef", mock.Anything, "pi_123").Return(nil, storage.ErrDepositNotFound)

		mockProvider := new(gwmocks.Provider)
		mockProvider.On("RetrievePaymentIntent", mock.Anything, "pi_123").Return(succeededIntent("user-1", 5000), nil)

		v := gateway.NewVerifier(mockProvider, mockStore, testConfig())
		result, err := v.ValidateDepositPayment(context.Background(), "pi_123", "user-1", amount)

		assert.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, "50.00", result.Amount.StringFixed(2))
	})
}
