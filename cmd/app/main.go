package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/joho/godotenv"
	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/auth"
	"github.com/streampass/wallet-deposits/pkg/config"
	"github.com/streampass/wallet-deposits/pkg/deposits"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	"github.com/streampass/wallet-deposits/pkg/handlers"
	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/notify"
	"github.com/streampass/wallet-deposits/pkg/queue"
	dydbstore "github.com/streampass/wallet-deposits/pkg/storage/dynamodb"
)

func main() {
	// Load environment variables from .env file (useful for local runs).
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

	sqsClient := sqs.NewFromConfig(awsCfg)
	eventQueue := queue.NewSQSQueue(sqsClient, cfg.WebhookQueueURL)

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

	service := deposits.NewService(store, provider, verifier, guard, trail, publisher, deposits.Config{
		Currency:   cfg.Currency,
		MinDeposit: cfg.MinDepositAmount,
		MaxDeposit: cfg.MaxDepositAmount,
	}, logger)

	router := handlers.NewRouter(handlers.Deps{
		Store:         store,
		Service:       service,
		Trail:         trail,
		Queue:         eventQueue,
		Auth:          auth.NewMiddleware(cfg.JWTSecret),
		WebhookSecret: cfg.WebhookSecret,
		Logger:        logger,
	})

	logger.Info("starting server", "port", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
