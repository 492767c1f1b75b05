package storage

import "context"

// ConnectionStore defines the interface for storing and retrieving WebSocket
// connection IDs used by the status publisher.
type ConnectionStore interface {
	AddConnection(ctx context.Context, connectionID string) error
	RemoveConnection(ctx context.Context, connectionID string) error
	GetAllConnections(ctx context.Context) ([]string, error)
}
