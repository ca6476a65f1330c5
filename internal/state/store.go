package state

import "context"

// Store is the durable KV surface for operational cursors: the hold-timer
// anchor and the last cycle snapshot. Implementations must be safe for use
// from the control loop and the snapshot HTTP handler concurrently.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}
