// Package repository handles data persistence.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/emadnahed/flakeid/internal/database"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/models"
)

// ErrDuplicateID is returned when a product with the same ID already exists.
var ErrDuplicateID = errors.New("product id already exists")

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 100

// ProductRepository defines the interface for product persistence operations.
type ProductRepository interface {
	// Create stores a product whose ID has already been assigned.
	Create(ctx context.Context, product *models.Product) error

	// GetByID retrieves a product by its ID.
	GetByID(ctx context.Context, id idgen.ID) (*models.Product, error)

	// List returns products in ID order.
	List(ctx context.Context, limit, offset int) ([]*models.Product, error)

	// ListLowStock returns products with stock at or below threshold, lowest first.
	ListLowStock(ctx context.Context, threshold int) ([]*models.Product, error)

	// ListPopular returns products priced at least minPrice with stock at or
	// below maxStock, most expensive first.
	ListPopular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error)

	// Update overwrites the mutable fields of an existing product.
	Update(ctx context.Context, product *models.Product) error

	// Delete removes a product by its ID.
	Delete(ctx context.Context, id idgen.ID) error

	// HealthCheck verifies the repository is healthy.
	HealthCheck(ctx context.Context) error
}

// Querier is the subset of pgx used by the repository. Both *pgxpool.Pool and
// pgx.Tx satisfy it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresProductRepository implements ProductRepository using PostgreSQL.
type PostgresProductRepository struct {
	db   Querier
	ping func(ctx context.Context) error
}

// NewPostgresProductRepository creates a new PostgreSQL-backed product repository.
func NewPostgresProductRepository(pool *database.Pool) *PostgresProductRepository {
	return &PostgresProductRepository{db: pool, ping: pool.HealthCheck}
}

const productColumns = `id, name, description, price::text, stock, created_at, updated_at`

// Create stores a new product.
func (r *PostgresProductRepository) Create(ctx context.Context, p *models.Product) error {
	defer observe("create", time.Now())

	query := `
		INSERT INTO products (id, name, description, price, stock, created_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Stock, p.CreatedAt).Scan(&p.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateID, p.ID)
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetByID retrieves a product by its ID.
func (r *PostgresProductRepository) GetByID(ctx context.Context, id idgen.ID) (*models.Product, error) {
	defer observe("get", time.Now())

	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	p, err := scanProduct(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// List returns products in ID order, which is creation order.
func (r *PostgresProductRepository) List(ctx context.Context, limit, offset int) ([]*models.Product, error) {
	defer observe("list", time.Now())

	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + productColumns + ` FROM products ORDER BY id LIMIT $1 OFFSET $2`
	return r.queryProducts(ctx, query, limit, offset)
}

// ListLowStock returns products with stock at or below threshold.
func (r *PostgresProductRepository) ListLowStock(ctx context.Context, threshold int) ([]*models.Product, error) {
	defer observe("list_low_stock", time.Now())

	query := `SELECT ` + productColumns + ` FROM products WHERE stock <= $1 ORDER BY stock ASC, id`
	return r.queryProducts(ctx, query, threshold)
}

// ListPopular returns expensive products that are running low.
func (r *PostgresProductRepository) ListPopular(ctx context.Context, minPrice string, maxStock int) ([]*models.Product, error) {
	defer observe("list_popular", time.Now())

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE price >= $1::numeric AND stock <= $2
		ORDER BY price DESC, id
	`
	return r.queryProducts(ctx, query, minPrice, maxStock)
}

// Update overwrites name, description, price, stock and updated_at.
func (r *PostgresProductRepository) Update(ctx context.Context, p *models.Product) error {
	defer observe("update", time.Now())

	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4::numeric, stock = $5, updated_at = $6
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, p.ID, p.Name, p.Description, p.Price, p.Stock, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// Delete removes a product by its ID.
func (r *PostgresProductRepository) Delete(ctx context.Context, id idgen.ID) error {
	defer observe("delete", time.Now())

	result, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// HealthCheck verifies the database connection is healthy.
func (r *PostgresProductRepository) HealthCheck(ctx context.Context) error {
	return r.ping(ctx)
}

func (r *PostgresProductRepository) queryProducts(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*models.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	var p models.Product
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// isDuplicateKeyError checks if the error is a unique violation (23505).
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func observe(operation string, start time.Time) {
	metrics.RecordDBQuery(operation, time.Since(start))
}
