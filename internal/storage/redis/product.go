// Package redis provides a cache-aside decorator for the product catalog.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/quickcart/internal/domain/product"
)

var _ product.Repository = (*ProductCache)(nil)

// ProductCache serves GetByID and List from Redis and falls back to the
// wrapped repository on a miss. Redis failures degrade to the fallback.
type ProductCache struct {
	next   product.Repository
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewProductCache wraps next. Keys are namespaced as "<prefix>:<op>:<key>".
func NewProductCache(next product.Repository, client redis.UniversalClient, prefix string, ttl time.Duration) *ProductCache {
	return &ProductCache{
		next:   next,
		client: client,
		ttl:    ttl,
		prefix: prefix,
	}
}

type cachedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	ImageURL    string          `json:"image_url"`
	Available   bool            `json:"available"`
}

func toCached(p product.Product) cachedProduct {
	return cachedProduct(p)
}

func (c cachedProduct) product() product.Product {
	return product.Product(c)
}

func (r *ProductCache) key(op, key string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, op, key)
}

// GetByID returns the product from cache or loads and caches it. Misses on
// the underlying repository are not cached.
func (r *ProductCache) GetByID(ctx context.Context, id string) (*product.Product, error) {
	key := r.key("product", id)

	var cached cachedProduct
	if r.load(ctx, key, &cached) {
		p := cached.product()
		return &p, nil
	}

	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, key, toCached(*p))
	return p, nil
}

// List returns the full catalog from cache or loads and caches it.
func (r *ProductCache) List(ctx context.Context) ([]product.Product, error) {
	key := r.key("products", "all")

	var cached []cachedProduct
	if r.load(ctx, key, &cached) {
		out := make([]product.Product, len(cached))
		for i, c := range cached {
			out[i] = c.product()
		}
		return out, nil
	}

	list, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	toStore := make([]cachedProduct, len(list))
	for i, p := range list {
		toStore[i] = toCached(p)
	}
	r.store(ctx, key, toStore)
	return list, nil
}

// GetByIDs is not cached.
func (r *ProductCache) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.next.GetByIDs(ctx, ids)
}

// Categories is not cached.
func (r *ProductCache) Categories(ctx context.Context) ([]string, error) {
	return r.next.Categories(ctx)
}

// Invalidate drops the cached entries for id and the full listing.
func (r *ProductCache) Invalidate(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key("product", id), r.key("products", "all")).Err(); err != nil {
		return errors.Wrap(err, "redis del")
	}
	return nil
}

func (r *ProductCache) load(ctx context.Context, key string, v any) bool {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zctx.From(ctx).Warn("Product cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		zctx.From(ctx).Warn("Product cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (r *ProductCache) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		zctx.From(ctx).Warn("Product cache write failed", zap.String("key", key), zap.Error(err))
	}
}
