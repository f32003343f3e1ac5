package ports

import (
	"context"
	"errors"
	"time"
)

var ErrCacheKeyRequired = errors.New("cache key is required")

// Cache is a key-value store for usecases. Writes made with a transactional context join the
// visible transaction and disappear with it on rollback. A zero ttl never expires.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
