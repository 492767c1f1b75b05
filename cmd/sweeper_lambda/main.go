package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/joho/godotenv"
	"github.com/streampass/wallet-deposits/pkg/activity"
	"github.com/streampass/wallet-deposits/pkg/config"
	"github.com/streampass/wallet-deposits/pkg/deposits"
	"github.com/streampass/wallet-deposits/pkg/gateway"
	"github.com/streampass/wallet-deposits/pkg/idempotency"
	"github.com/streampass/wallet-deposits/pkg/storage"
	dydbstore "github.com/streampass/wallet-deposits/pkg/storage/dynamodb"
)

var store storage.Storage
var service *deposits.Service

// Deposits stuck in processing longer than this are re-driven. It exceeds
// the idempotency TTL so the guard record has expired by the time the
// sweeper retries.
const stuckDepositThreshold = 45 * time.Minute

const expiredRecordBatch = 100

func init() {
	// Load environment variables for local testing.
	godotenv.Load()

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
	store = dydbstore.New(dbClient, cfg.BalancesTable, cfg.IdempotencyTable,
		cfg.DepositsTable, cfg.ActivitiesTable, cfg.ConnectionsTable)

	provider := gateway.NewClient(cfg.ProviderBaseURL, cfg.ProviderAPIKey)
	verifier := gateway.NewVerifier(provider, store, gateway.VerifierConfig{
		MinDeposit: cfg.MinDepositAmount,
		MaxDeposit: cfg.MaxDepositAmount,
		Tolerance:  cfg.AmountTolerance,
	})
	guard := idempotency.NewGuard(store, cfg.IdempotencyTTL, logger)
	trail := activity.NewTrail(store)

	service = deposits.NewService(store, provider, verifier, guard, trail, nil, deposits.Config{
		Currency:   cfg.Currency,
		MinDeposit: cfg.MinDepositAmount,
		MaxDeposit: cfg.MaxDepositAmount,
	}, logger)
}

// HandleRequest is triggered by an EventBridge Schedule. It physically purges
// expired idempotency records and re-drives deposits whose completion never
// reached a terminal state.
func HandleRequest(ctx context.Context) error {
	log.Println("Purging expired idempotency records...")

	expired, err := store.ListExpiredRecords(ctx, time.Now(), expiredRecordBatch)
	if err != nil {
		log.Printf("ERROR: failed to list expired idempotency records: %v", err)
		return err
	}
	for _, key := range expired {
		if err := store.DeleteRecord(ctx, key); err != nil {
			log.Printf("ERROR: failed to purge idempotency record %s: %v", key, err)
			return err
		}
	}
	log.Printf("Purged %d expired idempotency records", len(expired))

	log.Println("Re-driving stuck deposits...")

	stuck, err := store.GetStuckDeposits(ctx, stuckDepositThreshold)
	if err != nil {
		log.Printf("ERROR: failed to get stuck deposits: %v", err)
		return err
	}

	for _, deposit := range stuck {
		log.Printf("Re-driving deposit %s (ref %s)", deposit.ID, deposit.ExternalRef)

		_, err := service.CompleteDeposit(ctx, deposit.UserID, deposit.ExternalRef, deposit.RequestedAmount)
		if err == nil {
			log.Printf("Deposit %s completed on retry", deposit.ID)
			continue
		}
		if errors.Is(err, idempotency.ErrInProgress) {
			log.Printf("Deposit %s is already being completed elsewhere", deposit.ID)
			continue
		}
		// Business rejections are terminal; the service has already marked
		// the deposit failed. Anything else is retried on the next sweep.
		log.Printf("ERROR: failed to re-drive deposit %s: %v", deposit.ID, err)
	}

	log.Printf("Sweep finished: %d stuck deposits examined", len(stuck))
	return nil
}

func main() {
	lambda.Start(HandleRequest)
}
