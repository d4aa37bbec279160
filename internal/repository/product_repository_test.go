package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/config"
	"github.com/emadnahed/flakeid/internal/database"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/models"
)

func skipIfNoPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_POSTGRES") != "true" {
		t.Skip("Skipping: TEST_POSTGRES not set. Run with docker-compose up -d")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func testDBConfig() *config.DatabaseConfig {
	return &config.DatabaseConfig{
		Host:            getEnvOrDefault("DB_HOST", "localhost"),
		Port:            5432,
		User:            getEnvOrDefault("DB_USER", "flakeid"),
		Password:        getEnvOrDefault("DB_PASSWORD", "flakeid_dev_password"),
		DBName:          getEnvOrDefault("DB_NAME", "flakeid"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		ConnMaxLifetime: time.Minute,
	}
}

func setupTestDB(t *testing.T) *PostgresProductRepository {
	t.Helper()
	skipIfNoPostgres(t)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, testDBConfig())
	require.NoError(t, err)

	migrator, err := database.NewSchemaMigrator(pool)
	require.NoError(t, err)
	_, err = migrator.Up(ctx)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, "DELETE FROM products")
	require.NoError(t, err)

	t.Cleanup(func() {
		_, _ = pool.Exec(ctx, "DELETE FROM products")
		pool.Close()
	})

	return NewPostgresProductRepository(pool)
}

func newTestProduct(t *testing.T, gen *idgen.SnowflakeGenerator, name, price string, stock int) *models.Product {
	t.Helper()
	id, err := gen.NextID()
	require.NoError(t, err)
	return &models.Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Stock:     stock,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestPostgresProductRepository_CRUD(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	gen, err := idgen.NewSnowflakeGenerator(1)
	require.NoError(t, err)

	desc := "A very useful widget"
	p := newTestProduct(t, gen, "Widget", "19.99", 4)
	p.Description = &desc

	require.NoError(t, repo.Create(ctx, p))

	t.Run("duplicate id", func(t *testing.T) {
		err := repo.Create(ctx, p)
		assert.ErrorIs(t, err, ErrDuplicateID)
	})

	t.Run("get", func(t *testing.T) {
		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, "Widget", got.Name)
		assert.Equal(t, "19.99", got.Price)
		require.NotNil(t, got.Description)
		assert.Equal(t, desc, *got.Description)
		assert.Nil(t, got.UpdatedAt)
	})

	t.Run("update", func(t *testing.T) {
		now := time.Now().UTC()
		p.Stock = 0
		p.Price = "21.50"
		p.UpdatedAt = &now
		require.NoError(t, repo.Update(ctx, p))

		got, err := repo.GetByID(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.Stock)
		assert.Equal(t, "21.50", got.Price)
		assert.NotNil(t, got.UpdatedAt)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, p.ID))

		_, err := repo.GetByID(ctx, p.ID)
		assert.ErrorIs(t, err, models.ErrProductNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, p.ID), models.ErrProductNotFound)
	})

	t.Run("update missing", func(t *testing.T) {
		assert.ErrorIs(t, repo.Update(ctx, p), models.ErrProductNotFound)
	})
}

func TestPostgresProductRepository_Lists(t *testing.T) {
	repo := setupTestDB(t)
	ctx := context.Background()
	gen, err := idgen.NewSnowflakeGenerator(2)
	require.NoError(t, err)

	cheap := newTestProduct(t, gen, "Cheap", "5.00", 2)
	pricey := newTestProduct(t, gen, "Pricey", "99.00", 1)
	plenty := newTestProduct(t, gen, "Plenty", "60.00", 100)
	for _, p := range []*models.Product{cheap, pricey, plenty} {
		require.NoError(t, repo.Create(ctx, p))
	}

	t.Run("list in id order", func(t *testing.T) {
		all, err := repo.List(ctx, 0, 0)
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, cheap.ID, all[0].ID)
		assert.Equal(t, plenty.ID, all[2].ID)

		page, err := repo.List(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, pricey.ID, page[0].ID)
	})

	t.Run("low stock", func(t *testing.T) {
		low, err := repo.ListLowStock(ctx, 5)
		require.NoError(t, err)
		require.Len(t, low, 2)
		assert.Equal(t, pricey.ID, low[0].ID, "lowest stock first")
		assert.Equal(t, cheap.ID, low[1].ID)
	})

	t.Run("popular", func(t *testing.T) {
		popular, err := repo.ListPopular(ctx, "50", 10)
		require.NoError(t, err)
		require.Len(t, popular, 1)
		assert.Equal(t, pricey.ID, popular[0].ID)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.HealthCheck(ctx))
	})
}
