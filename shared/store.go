package shared

import "context"

// KeyValueStore persists small values under fixed keys
type KeyValueStore interface {
	// Get returns found=false, with no error, for a missing key
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
