package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/storefront/internal/domain"
)

// ProductReader is the read side used by the product and cart handlers.
type ProductReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
}

// Cache is a cache-aside decorator over a ProductReader. Redis failures
// degrade to reading through; they are never returned to the caller.
type Cache struct {
	next   ProductReader
	client redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

func NewCache(next ProductReader, client redis.Cmdable, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		next:   next,
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func productKey(id int64) string {
	return fmt.Sprintf("product:%d", id)
}

func (c *Cache) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	key := productKey(id)

	val, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if err := json.Unmarshal(val, &p); err == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "product cache read failed", "error", err, "key", key)
	}

	p, err := c.next.GetByID(ctx, id)
	if err != nil || p == nil {
		return p, err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return p, nil
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache write failed", "error", err, "key", key)
	}

	return p, nil
}

// Invalidate drops the cached entries for ids.
func (c *Cache) Invalidate(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "product cache invalidation failed", "error", err, "keys", keys)
	}
}
