// Package main is the entry point for the flakeid API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/emadnahed/flakeid/internal/cache"
	"github.com/emadnahed/flakeid/internal/config"
	"github.com/emadnahed/flakeid/internal/database"
	"github.com/emadnahed/flakeid/internal/events"
	"github.com/emadnahed/flakeid/internal/handlers"
	"github.com/emadnahed/flakeid/internal/idgen"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/repository"
	"github.com/emadnahed/flakeid/internal/server"
	"github.com/emadnahed/flakeid/internal/services"
	"github.com/emadnahed/flakeid/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(os.Stdout, cfg.App.LogLevel).With("service", "flakeid")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	nodeID, err := cfg.ResolveNodeID(idgen.LocalNodeID)
	if err != nil {
		return err
	}
	base, err := idgen.NewSnowflakeGenerator(nodeID)
	if err != nil {
		return fmt.Errorf("node %d: %w", nodeID, err)
	}
	node := base.NodeID()

	gen := idgen.NewRetryingGenerator(base, cfg.Snowflake.MaxRetries, cfg.Snowflake.MaxClockWait)
	gen.OnClockRegression = func(err *idgen.ClockMovedBackwardsError, attempt int) {
		log.Warn("clock moved backwards",
			"drift", err.Drift().String(),
			"attempt", attempt,
		)
	}
	if _, err := metrics.RegisterGenerator(gen, node); err != nil {
		return fmt.Errorf("failed to register generator metrics: %w", err)
	}
	log.Info("id generator ready", "node_id", node, "node_id_configured", cfg.Snowflake.NodeIDSet)

	srv := server.New(cfg, log, node)
	srv.SetIDHandler(handlers.NewIDHandler(services.NewIDService(gen, node), node, log))

	g, gctx := errgroup.WithContext(ctx)

	if cfg.DatabaseEnabled() {
		closeProducts, err := wireProducts(gctx, g, cfg, log, gen, srv)
		if err != nil {
			return err
		}
		defer closeProducts()
	} else {
		log.Warn("database not configured, product routes disabled")
	}

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// wireProducts connects the catalogue to Postgres and, when configured, to
// Redis for caching and update events. The returned func releases the
// connections.
func wireProducts(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Config,
	log *logger.Logger,
	gen idgen.ContextGenerator,
	srv *server.Server,
) (func(), error) {
	pool, err := database.NewPool(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	closers := []func(){pool.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	log.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.DBName)

	if cfg.Database.AutoMigrate {
		migrator, err := database.NewSchemaMigrator(pool)
		if err != nil {
			closeAll()
			return nil, err
		}
		applied, err := migrator.Up(ctx)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		log.Info("migrations applied", "count", applied)
	}

	srv.HealthHandler().AddCheck("database", pool.HealthCheck)

	var repo repository.ProductRepository = repository.NewPostgresProductRepository(pool)
	var publisher events.Publisher

	if cfg.RedisEnabled() {
		client, err := cache.NewRedisClient(ctx, &cfg.Redis)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		redisCache := cache.NewRedisCacheWithClient(client)
		closers = append(closers, func() { _ = redisCache.Close() })
		srv.HealthHandler().AddCheck("redis", redisCache.Ping)

		repo = repository.NewCachedProductRepository(repo,
			cache.NewProductCache(redisCache, "product:", cfg.Products.CacheTTL))
		publisher = events.NewStreamPublisher(client, cfg.Events.Stream, log)

		consumer, err := events.NewStreamConsumer(ctx, client, events.ConsumerConfig{
			Stream:          cfg.Events.Stream,
			Group:           cfg.Events.Group,
			Consumer:        cfg.Events.Consumer,
			DLQStream:       cfg.Events.DLQStream,
			Block:           cfg.Events.Block,
			MaxAttempts:     cfg.Events.MaxAttempts,
			ClaimIdle:       cfg.Events.ClaimIdle,
			ReclaimInterval: cfg.Events.ReclaimInterval,
		}, log)
		if err != nil {
			closeAll()
			return nil, err
		}
		handler := events.NewProductUpdatedHandler(repo, log)
		g.Go(func() error {
			return consumer.Run(ctx, handler)
		})
		log.Info("redis connected", "stream", cfg.Events.Stream, "group", cfg.Events.Group)
	} else {
		publisher = events.NewSyncPublisher(events.NewProductUpdatedHandler(repo, log))
		log.Info("redis not configured, handling product events in-process")
	}

	svc := services.NewProductService(repo, gen, publisher, cfg.Products.LowStockThreshold, log)
	srv.SetProductHandler(handlers.NewProductHandler(svc))
	return closeAll, nil
}
