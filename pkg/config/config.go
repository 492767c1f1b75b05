package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config carries everything the service reads from the environment. Deposit
// bounds and the amount tolerance are business policy and deliberately live
// here rather than as constants in the orchestrator.
type Config struct {
	Port string

	BalancesTable    string
	IdempotencyTable string
	DepositsTable    string
	ActivitiesTable  string
	ConnectionsTable string

	WebhookQueueURL string

	ProviderBaseURL string
	ProviderAPIKey  string
	WebhookSecret   string

	JWTSecret string

	WebsocketAPIEndpoint string

	Currency         string
	MinDepositAmount decimal.Decimal
	MaxDepositAmount decimal.Decimal
	AmountTolerance  decimal.Decimal
	IdempotencyTTL   time.Duration
}

// Load reads the configuration from environment variables. Table names and
// secrets are required; policy values fall back to defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getenv("HTTP_PORT", "8080"),
		BalancesTable:        os.Getenv("DYNAMODB_BALANCES_TABLE_NAME"),
		IdempotencyTable:     os.Getenv("DYNAMODB_IDEMPOTENCY_TABLE_NAME"),
		DepositsTable:        os.Getenv("DYNAMODB_DEPOSITS_TABLE_NAME"),
		ActivitiesTable:      os.Getenv("DYNAMODB_ACTIVITIES_TABLE_NAME"),
		ConnectionsTable:     os.Getenv("DYNAMODB_CONNECTIONS_TABLE_NAME"),
		Currency:             getenv("DEPOSIT_CURRENCY", "usd"),
		WebhookQueueURL:      os.Getenv("SQS_WEBHOOK_QUEUE_URL"),
		ProviderBaseURL:      getenv("PAYMENT_PROVIDER_BASE_URL", "https://api.payments.example.com"),
		ProviderAPIKey:       os.Getenv("PAYMENT_PROVIDER_API_KEY"),
		WebhookSecret:        os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		WebsocketAPIEndpoint: os.Getenv("WEBSOCKET_API_ENDPOINT"),
	}

	for name, value := range map[string]string{
		"DYNAMODB_BALANCES_TABLE_NAME":    cfg.BalancesTable,
		"DYNAMODB_IDEMPOTENCY_TABLE_NAME": cfg.IdempotencyTable,
		"DYNAMODB_DEPOSITS_TABLE_NAME":    cfg.DepositsTable,
		"DYNAMODB_ACTIVITIES_TABLE_NAME":  cfg.ActivitiesTable,
	} {
		if value == "" {
			return nil, fmt.Errorf("%s environment variable is required", name)
		}
	}

	var err error
	if cfg.MinDepositAmount, err = decimalEnv("MIN_DEPOSIT_AMOUNT", "1.00"); err != nil {
		return nil, err
	}
	if cfg.MaxDepositAmount, err = decimalEnv("MAX_DEPOSIT_AMOUNT", "10000.00"); err != nil {
		return nil, err
	}
	if cfg.AmountTolerance, err = decimalEnv("AMOUNT_TOLERANCE", "0.01"); err != nil {
		return nil, err
	}

	ttlMinutes := getenv("IDEMPOTENCY_TTL_MINUTES", "30")
	minutes, err := strconv.Atoi(ttlMinutes)
	if err != nil || minutes <= 0 {
		return nil, fmt.Errorf("IDEMPOTENCY_TTL_MINUTES must be a positive integer, got %q", ttlMinutes)
	}
	cfg.IdempotencyTTL = time.Duration(minutes) * time.Minute

	return cfg, nil
}

func getenv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func decimalEnv(name, fallback string) (decimal.Decimal, error) {
	raw := getenv(name, fallback)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s must be a decimal amount, got %q", name, raw)
	}
	return d, nil
}
