package events

import (
	"context"
	"errors"
	"time"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// ProductGetter loads a product by ID.
type ProductGetter interface {
	GetByID(ctx context.Context, id idgen.ID) (*models.Product, error)
}

// ProductUpdatedHandler logs what the product ID reveals about the product
// and confirms the product still exists.
type ProductUpdatedHandler struct {
	products ProductGetter
	logger   *logger.Logger
}

var _ Handler = (*ProductUpdatedHandler)(nil)

// NewProductUpdatedHandler creates a handler.
func NewProductUpdatedHandler(products ProductGetter, log *logger.Logger) *ProductUpdatedHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &ProductUpdatedHandler{products: products, logger: log}
}

// Handle processes a single event. A product that no longer exists is
// logged and treated as handled.
func (h *ProductUpdatedHandler) Handle(ctx context.Context, event ProductUpdated) error {
	id := event.ProductID
	log := h.logger.With("product_id", id.String())

	log.Info("processing product update",
		"updated_at", event.UpdatedAt.UTC().Format(time.RFC3339Nano),
		"product_created_at", id.Time().Format(time.RFC3339Nano),
		"node_id", id.NodeID(),
		"sequence", id.Sequence(),
		"attempt", event.Attempt,
	)

	product, err := h.products.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			log.Warn("product not found")
			return nil
		}
		return err
	}

	log.Info("product update processed", "name", product.Name, "stock", product.Stock)
	return nil
}
