package services

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/emadnahed/flakeid/internal/events"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
)

// MockProductRepository is a mock implementation of repository.ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) Create(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepository) GetByID(ctx context.Context, id idgen.ID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductRepository) List(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockProductRepository) ListLowStock(ctx context.Context, threshold int) ([]*models.Product, error) {
	args := m.Called(ctx, threshold)
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockProductRepository) ListPopular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error) {
	args := m.Called(ctx, minPrice, maxStock)
	return args.Get(0).([]*models.Product), args.Error(1)
}

func (m *MockProductRepository) Update(ctx context.Context, p *models.Product) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockProductRepository) Delete(ctx context.Context, id idgen.ID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockProductRepository) HealthCheck(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPublisher is a mock implementation of events.Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishProductUpdated(ctx context.Context, e events.ProductUpdated) error {
	return m.Called(ctx, e).Error(0)
}

// sequenceGenerator hands out consecutive IDs, or err when set.
type sequenceGenerator struct {
	mu    sync.Mutex
	next  idgen.ID
	err   error
	stats idgen.Stats
}

func (g *sequenceGenerator) NextID() (idgen.ID, error) {
	return g.NextIDContext(context.Background())
}

func (g *sequenceGenerator) NextIDContext(ctx context.Context) (idgen.ID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if g.err != nil {
		return 0, g.err
	}
	g.next++
	g.stats.Generated++
	return g.next, nil
}

func (g *sequenceGenerator) Stats() idgen.Stats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stats
}
