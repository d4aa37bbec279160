package repository

import (
	"context"
	"errors"

	"github.com/emadnahed/flakeid/internal/cache"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/models"
)

// CachedProductRepository wraps a ProductRepository with read-through caching
// of single products. Lists always go to the underlying repository.
type CachedProductRepository struct {
	repo  ProductRepository
	cache cache.ProductCacher
}

var _ ProductRepository = (*CachedProductRepository)(nil)

// NewCachedProductRepository creates a new cached product repository.
func NewCachedProductRepository(repo ProductRepository, productCache cache.ProductCacher) *CachedProductRepository {
	return &CachedProductRepository{
		repo:  repo,
		cache: productCache,
	}
}

// Create stores a product and caches it. Cache errors are ignored.
func (c *CachedProductRepository) Create(ctx context.Context, p *models.Product) error {
	if err := c.repo.Create(ctx, p); err != nil {
		return err
	}
	_ = c.cache.Set(ctx, p)
	return nil
}

// GetByID checks the cache first and falls back to the database.
func (c *CachedProductRepository) GetByID(ctx context.Context, id idgen.ID) (*models.Product, error) {
	p, err := c.cache.Get(ctx, id)
	if err == nil {
		metrics.RecordCacheHit()
		return p, nil
	}
	if errors.Is(err, cache.ErrCacheMiss) {
		metrics.RecordCacheMiss()
	}

	p, err = c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = c.cache.Set(ctx, p)
	return p, nil
}

// List is not cached.
func (c *CachedProductRepository) List(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	return c.repo.List(ctx, limit, offset)
}

// ListLowStock is not cached.
func (c *CachedProductRepository) ListLowStock(ctx context.Context, threshold int) ([]*models.Product, error) {
	return c.repo.ListLowStock(ctx, threshold)
}

// ListPopular is not cached.
func (c *CachedProductRepository) ListPopular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error) {
	return c.repo.ListPopular(ctx, minPrice, maxStock)
}

// Update writes to the database and invalidates the cached entry.
func (c *CachedProductRepository) Update(ctx context.Context, p *models.Product) error {
	if err := c.repo.Update(ctx, p); err != nil {
		return err
	}
	_ = c.cache.Delete(ctx, p.ID)
	return nil
}

// Delete removes a product from both cache and database.
func (c *CachedProductRepository) Delete(ctx context.Context, id idgen.ID) error {
	_ = c.cache.Delete(ctx, id)
	return c.repo.Delete(ctx, id)
}

// HealthCheck checks both cache and database health.
func (c *CachedProductRepository) HealthCheck(ctx context.Context) error {
	if err := c.cache.Ping(ctx); err != nil {
		return err
	}
	return c.repo.HealthCheck(ctx)
}
