package services

import (
	"context"
	"fmt"
	"time"

	"github.com/emadnahed/flakeid/internal/events"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/models"
	"github.com/emadnahed/flakeid/internal/repository"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// ProductService defines catalogue operations.
type ProductService interface {
	Create(ctx context.Context, in models.ProductInput) (*models.Product, error)
	Get(ctx context.Context, id idgen.ID) (*models.Product, error)
	List(ctx context.Context, limit, offset int) ([]*models.Product, error)
	LowStock(ctx context.Context, threshold *int) ([]*models.Product, error)
	Popular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error)
	Replace(ctx context.Context, id idgen.ID, in models.ProductInput) (*models.Product, error)
	Patch(ctx context.Context, id idgen.ID, in models.ProductInput) (*models.Product, error)
	Delete(ctx context.Context, id idgen.ID) error
}

// ProductServiceImpl implements ProductService.
type ProductServiceImpl struct {
	repo              repository.ProductRepository
	generator         idgen.ContextGenerator
	publisher         events.Publisher
	lowStockThreshold int
	logger            *logger.Logger
	now               func() time.Time
}

var _ ProductService = (*ProductServiceImpl)(nil)

// NewProductService creates a new ProductService. A nil publisher drops
// update events.
func NewProductService(
	repo repository.ProductRepository,
	gen idgen.ContextGenerator,
	publisher events.Publisher,
	lowStockThreshold int,
	log *logger.Logger,
) *ProductServiceImpl {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &ProductServiceImpl{
		repo:              repo,
		generator:         gen,
		publisher:         publisher,
		lowStockThreshold: lowStockThreshold,
		logger:            log,
		now:               time.Now,
	}
}

// Create validates the input, assigns a fresh ID and stores the product.
func (s *ProductServiceImpl) Create(ctx context.Context, in models.ProductInput) (*models.Product, error) {
	if err := in.ValidateCreate(); err != nil {
		return nil, err
	}

	id, err := s.generator.NextIDContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to assign product ID: %w", err)
	}

	p := &models.Product{
		ID:        id,
		CreatedAt: s.now().UTC(),
	}
	in.ApplyTo(p, true)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	metrics.RecordProductOperation("create")
	return p, nil
}

// Get returns a single product.
func (s *ProductServiceImpl) Get(ctx context.Context, id idgen.ID) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns a page of products in creation order.
func (s *ProductServiceImpl) List(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	return s.repo.List(ctx, limit, offset)
}

// LowStock lists products at or below threshold, falling back to the
// configured threshold when none is given.
func (s *ProductServiceImpl) LowStock(ctx context.Context, threshold *int) ([]*models.Product, error) {
	t := s.lowStockThreshold
	if threshold != nil {
		t = *threshold
	}
	return s.repo.ListLowStock(ctx, t)
}

// Popular lists expensive products that are running low.
func (s *ProductServiceImpl) Popular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error) {
	if err := models.ValidatePrice(minPrice); err != nil {
		return nil, err
	}
	return s.repo.ListPopular(ctx, minPrice, maxStock)
}

// Replace overwrites every mutable field.
func (s *ProductServiceImpl) Replace(ctx context.Context, id idgen.ID, in models.ProductInput) (*models.Product, error) {
	if err := in.ValidateReplace(); err != nil {
		return nil, err
	}
	return s.update(ctx, id, in, true)
}

// Patch overwrites only the supplied fields.
func (s *ProductServiceImpl) Patch(ctx context.Context, id idgen.ID, in models.ProductInput) (*models.Product, error) {
	if err := in.ValidatePatch(); err != nil {
		return nil, err
	}
	return s.update(ctx, id, in, false)
}

func (s *ProductServiceImpl) update(ctx context.Context, id idgen.ID, in models.ProductInput, replace bool) (*models.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Work on a copy so a cached instance is never mutated.
	updated := *p
	in.ApplyTo(&updated, replace)
	now := s.now().UTC()
	updated.UpdatedAt = &now

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}
	metrics.RecordProductOperation("update")

	event := events.ProductUpdated{ProductID: updated.ID, UpdatedAt: now}
	if err := s.publisher.PublishProductUpdated(ctx, event); err != nil {
		// The write already succeeded; a lost notification is not a failed update.
		s.logger.Error("failed to publish product update",
			"product_id", updated.ID.String(),
			"error", err.Error(),
		)
	}

	return &updated, nil
}

// Delete removes a product.
func (s *ProductServiceImpl) Delete(ctx context.Context, id idgen.ID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	metrics.RecordProductOperation("delete")
	return nil
}
