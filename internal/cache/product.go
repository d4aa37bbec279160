package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
)

// DefaultProductTTL is used when no TTL is configured.
const DefaultProductTTL = time.Hour

// ProductCacher defines product caching operations.
type ProductCacher interface {
	Get(ctx context.Context, id idgen.ID) (*models.Product, error)
	Set(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id idgen.ID) error
	Ping(ctx context.Context) error
}

var _ ProductCacher = (*ProductCache)(nil)

// ProductCache stores products as JSON under product:<id>.
type ProductCache struct {
	cache     Cache
	keyPrefix string
	ttl       time.Duration
}

// NewProductCache creates a product cache on top of a generic cache.
func NewProductCache(cache Cache, keyPrefix string, ttl time.Duration) *ProductCache {
	if keyPrefix == "" {
		keyPrefix = "product:"
	}
	if ttl <= 0 {
		ttl = DefaultProductTTL
	}
	return &ProductCache{
		cache:     cache,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Get retrieves a product by ID. A missing entry returns ErrCacheMiss.
func (c *ProductCache) Get(ctx context.Context, id idgen.ID) (*models.Product, error) {
	data, err := c.cache.Get(ctx, c.key(id))
	if err != nil {
		return nil, err
	}

	var product models.Product
	if err := json.Unmarshal(data, &product); err != nil {
		// Drop entries written by an incompatible version.
		_ = c.cache.Delete(ctx, c.key(id))
		return nil, fmt.Errorf("failed to unmarshal cached product: %w", err)
	}
	return &product, nil
}

// Set stores a product.
func (c *ProductCache) Set(ctx context.Context, product *models.Product) error {
	data, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.cache.Set(ctx, c.key(product.ID), data, c.ttl)
}

// Delete removes a product.
func (c *ProductCache) Delete(ctx context.Context, id idgen.ID) error {
	return c.cache.Delete(ctx, c.key(id))
}

// Ping checks if the cache is healthy.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.cache.Ping(ctx)
}

func (c *ProductCache) key(id idgen.ID) string {
	return c.keyPrefix + id.String()
}
