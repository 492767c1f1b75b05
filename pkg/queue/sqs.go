package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/streampass/wallet-deposits/pkg/gateway"
)

// SQSQueue implements the EventQueue interface using AWS SQS.
type SQSQueue struct {
	Client   *sqs.Client
	QueueURL string
}

// NewSQSQueue creates a new SQSQueue.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	return &SQSQueue{
		Client:   client,
		QueueURL: queueURL,
	}
}

// Make sure we conform to the interface
var _ EventQueue = (*SQSQueue)(nil)

// EnqueueWebhookEvent sends the event to the webhook queue for the worker to
// process.
func (q *SQSQueue) EnqueueWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	// Marshal the event to JSON.
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook event for SQS: %w", err)
	}

	// Send the message to SQS.
	_, err = q.Client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.QueueURL),
		MessageBody: aws.String(string(body)),
	})

	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	return nil
}
