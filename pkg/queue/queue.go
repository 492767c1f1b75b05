package queue

import (
	"context"

	"github.com/streampass/wallet-deposits/pkg/gateway"
)

// EventQueue defines the interface for durably queueing webhook events for
// asynchronous processing. The webhook endpoint acknowledges the provider
// only after the event is enqueued.
type EventQueue interface {
	// EnqueueWebhookEvent enqueues a verified webhook event.
	EnqueueWebhookEvent(ctx context.Context, event *gateway.WebhookEvent) error
}
