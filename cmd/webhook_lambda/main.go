package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/config"
	"github.com/streampass/wallet-deposits/pkg/deposits"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/notify"
	dydbstore "github.com/streampass/wallet-deposits/pkg/storage/dynamodb"
)

var service *deposits.Service

func init() {
	// Load environment variables from .env file (useful for local testing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	dbClient := dynamodb.NewFromConfig(awsCfg)
	store := dydbstore.New(dbClient, cfg.BalancesTable, cfg.IdempotencyTable,
		cfg.DepositsTable, cfg.ActivitiesTable, cfg.ConnectionsTable)

	provider := gateway.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	verifier := gateway.NewVerifier(provider, store, gateway.VerifierConfig{
		MinDeposit: cfg.MinDepositAmount,
		MaxDeposit: cfg.MaxDepositAmount,
		Tolerance:  cfg.AmountTolerance,
	})
	guard := idempotency.NewGuard(store, cfg.IdempotencyTTL, logger)
	trail := activity.NewTrail(store)

	var publisher notify.Publisher
	if cfg.WebsocketAPIEndpoint != "" {
		publisher, err = notify.NewPublisher(store, store, cfg.WebsocketAPIEndpoint)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
	}

	service = deposits.NewService(store, provider, verifier, guard, trail, publisher, deposits.Config{
		Currency:   cfg.Currency,
		MinDeposit: cfg.MinDepositAmount,
		MaxDeposit: cfg.MaxDepositAmount,
	}, logger)
}

// HandleRequest drains verified webhook events off the queue and runs the
// completion path for each. A returned error makes SQS redeliver the batch.
func HandleRequest(ctx context.Context, sqsEvent events.SQSEvent) error {
	for _, message := range sqsEvent.Records {
		log.Printf("Processing message %s", message.MessageId)

		var event gateway.WebhookEvent
		if err := json.Unmarshal([]byte(message.Body), &event); err != nil {
			// A malformed message can never succeed; drop it rather than
			// poisoning the queue.
			log.Printf("ERROR: failed to unmarshal webhook event from SQS message %s: %v", message.MessageId, err)
			continue
		}

		if err := service.ProcessWebhookEvent(ctx, &event); err != nil {
			log.Printf("ERROR: failed to process webhook event %s: %v", event.ID, err)
			return err
		}
	}

	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
