package notify

import (
	"context"
)

// ConnectionManager defines the interface for managing WebSocket connections.
type ConnectionManager interface {
	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
}

// Publisher defines the interface for pushing status messages to subscribed
// clients. Delivery is best-effort: the poll endpoint remains the safe
// re-query path, so a missed push never loses a terminal state.
type Publisher interface {
	Publish(ctx context.Context, message Message) error
}
