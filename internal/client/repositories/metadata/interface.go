// Package metadata stores small key/value facts of the local client: sealed
// credentials, the cached profile and the sync checkpoint.
package metadata

import (
	"context"
)

// Repository is a byte-valued key/value store.
type Repository interface {
	// Get returns (nil, nil) when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete is idempotent.
	Delete(ctx context.Context, key string) error
	// List returns all pairs whose key starts with prefix ("" for all).
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	// DeletePrefix removes all keys starting with prefix ("" for all).
	DeletePrefix(ctx context.Context, prefix string) error
}
