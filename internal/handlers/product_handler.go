package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
	"github.com/emadnahed/flakeid/internal/services"
)

// Defaults for GET /api/v1/products/popular.
const (
	DefaultPopularMinPrice = "50"
	DefaultPopularMaxStock = 10
)

// MaxListLimit caps the page size of GET /api/v1/products.
const MaxListLimit = 1000

const maxBodyBytes = 1 << 20

// ProductHandler serves the product catalogue.
type ProductHandler struct {
	service services.ProductService
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(svc services.ProductService) *ProductHandler {
	return &ProductHandler{service: svc}
}

// List handles GET /api/v1/products?limit=&offset=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, ok := intQuery(w, r, "limit", 0, MaxListLimit)
	if !ok {
		return
	}
	offset, ok := intQuery(w, r, "offset", 0, -1)
	if !ok {
		return
	}

	products, err := h.service.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeProducts(w, products)
}

// Create handles POST /api/v1/products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	in, ok := decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := h.service.Create(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/products/"+product.ID.String())
	writeJSON(w, http.StatusCreated, product)
}

// Get handles GET /api/v1/products/{id}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	product, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Replace handles PUT /api/v1/products/{id}.
func (h *ProductHandler) Replace(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.service.Replace)
}

// Patch handles PATCH /api/v1/products/{id}.
func (h *ProductHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, h.service.Patch)
}

type updateFunc func(ctx context.Context, id idgen.ID, in models.ProductInput) (*models.Product, error)

func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request, apply updateFunc) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	in, ok := decodeProductInput(w, r)
	if !ok {
		return
	}

	product, err := apply(r.Context(), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, product)
}

// Delete handles DELETE /api/v1/products/{id}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LowStock handles GET /api/v1/products/low-stock?threshold=N. Without a
// threshold the configured default applies.
func (h *ProductHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	var threshold *int
	if r.URL.Query().Has("threshold") {
		t, ok := intQuery(w, r, "threshold", 0, -1)
		if !ok {
			return
		}
		threshold = &t
	}

	products, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeProducts(w, products)
}

// Popular handles GET /api/v1/products/popular?min_price=P&max_stock=N.
func (h *ProductHandler) Popular(w http.ResponseWriter, r *http.Request) {
	minPrice := r.URL.Query().Get("min_price")
	if minPrice == "" {
		minPrice = DefaultPopularMinPrice
	}
	maxStock, ok := intQuery(w, r, "max_stock", DefaultPopularMaxStock, -1)
	if !ok {
		return
	}

	products, err := h.service.Popular(r.Context(), minPrice, maxStock)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeProducts(w, products)
}

func writeProducts(w http.ResponseWriter, products []*models.Product) {
	if products == nil {
		products = []*models.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func productID(w http.ResponseWriter, r *http.Request) (idgen.ID, bool) {
	id, err := idgen.ParseStoredID(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return 0, false
	}
	return id, true
}

func decodeProductInput(w http.ResponseWriter, r *http.Request) (models.ProductInput, bool) {
	var in models.ProductInput
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in)
	if err != nil {
		msg := "invalid request body"
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", msg)
		return in, false
	}
	return in, true
}

// intQuery reads a non-negative integer query parameter. An upper bound below
// zero means unbounded. It writes a 400 and returns false on bad input.
func intQuery(w http.ResponseWriter, r *http.Request, name string, def, upper int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 || (upper >= 0 && v > upper) {
		writeError(w, http.StatusBadRequest, "INVALID_PARAMETER", "invalid "+name)
		return 0, false
	}
	return v, true
}
