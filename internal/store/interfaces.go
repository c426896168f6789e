package store

import (
	"context"

	"catalog-cart-service/internal/domain"
)

// KeyValueStore is a durable string-keyed collection of string values.
// Only single-key operations are atomic; concurrent writers to the same key
// resolve as last-writer-wins.
type KeyValueStore interface {
	// Get returns ErrKeyNotFound when key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Remove succeeds when key is absent.
	Remove(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Len(ctx context.Context) (int, error)
}

// Pinger is implemented by stores that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Backend is a cart KeyValueStore owned by the process.
type Backend interface {
	KeyValueStore
	Pinger
	Close() error
}

// ListProductsParams holds parameters for listing catalog products.
type ListProductsParams struct {
	Limit       int
	Offset      int
	SearchQuery *string // Matched against title and description
	SortOrder   string  // "asc", "desc" or "none" (price ordering)
}

// ProductLister lists catalog products together with the total match count.
type ProductLister interface {
	ListProducts(ctx context.Context, params ListProductsParams) ([]domain.Item, int, error)
}

var (
	_ Backend       = (*SQLiteStore)(nil)
	_ Backend       = (*PostgresStore)(nil)
	_ Backend       = (*MemoryStore)(nil)
	_ ProductLister = (*PostgresStore)(nil)
)
