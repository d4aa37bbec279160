// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/emadnahed/flakeid/internal/config"
	"github.com/emadnahed/flakeid/internal/handlers"
	"github.com/emadnahed/flakeid/internal/metrics"
	"github.com/emadnahed/flakeid/internal/middleware"
	"github.com/emadnahed/flakeid/internal/ratelimit"
	"github.com/emadnahed/flakeid/internal/services"
	"github.com/emadnahed/flakeid/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	cfg            *config.Config
	log            *logger.Logger
	httpServer     *http.Server
	healthHandler  *handlers.HealthHandler
	idHandler      *handlers.IDHandler
	productHandler *handlers.ProductHandler
	docsHandler    *handlers.DocsHandler
	rateLimiter    ratelimit.Limiter
	listener       net.Listener
	running        bool
	mu             sync.RWMutex
}

// New creates a new Server instance for the generator node nodeID.
func New(cfg *config.Config, log *logger.Logger, nodeID uint16) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(nodeID),
	}

	docs, err := handlers.NewDocsHandler("flakeid API Documentation", "/docs/openapi.yaml")
	if err != nil {
		log.Error("api docs unavailable", "error", err.Error())
	}
	s.docsHandler = docs

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.buildMiddlewareChain(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain creates the middleware chain for the server.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	chain := middleware.New(
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.Server.TrustProxy, s.cfg.Server.TrustedProxies),
		middleware.Logging(s.log),
	)

	if s.cfg.RateLimit.Enabled {
		s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.Config{
			Rate:  s.cfg.RateLimit.IDsPerSecond,
			Burst: s.cfg.RateLimit.Burst,
		})

		chain = chain.Append(middleware.RateLimit(s.rateLimiter, middleware.RateLimitConfig{
			Cost:   idCost,
			Logger: s.log,
		}))

		s.log.Info("rate limiting enabled",
			"ids_per_second", s.cfg.RateLimit.IDsPerSecond,
			"burst", s.cfg.RateLimit.Burst,
		)
	}

	return chain.Then(handler)
}

// idCost charges batch generation by the number of IDs asked for. Malformed
// counts cost one token and are rejected by the handler.
func idCost(r *http.Request) int {
	if r.Method != http.MethodPost || r.URL.Path != "/api/v1/ids" {
		return 1
	}
	count, err := handlers.CountParam(r)
	if err != nil || count < 1 {
		return 1
	}
	return min(count, services.MaxBatchSize)
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /docs", s.withDocs((*handlers.DocsHandler).UI))
	mux.HandleFunc("GET /docs/openapi.yaml", s.withDocs((*handlers.DocsHandler).OpenAPISpec))

	mux.HandleFunc("POST /api/v1/ids", s.withIDs((*handlers.IDHandler).Generate))
	mux.HandleFunc("GET /api/v1/ids/{id}", s.withIDs((*handlers.IDHandler).Inspect))
	mux.HandleFunc("GET /api/v1/snowflake-info", s.withIDs((*handlers.IDHandler).Info))

	mux.HandleFunc("GET /api/v1/products", s.withProducts((*handlers.ProductHandler).List))
	mux.HandleFunc("POST /api/v1/products", s.withProducts((*handlers.ProductHandler).Create))
	mux.HandleFunc("GET /api/v1/products/low-stock", s.withProducts((*handlers.ProductHandler).LowStock))
	mux.HandleFunc("GET /api/v1/products/popular", s.withProducts((*handlers.ProductHandler).Popular))
	mux.HandleFunc("GET /api/v1/products/{id}", s.withProducts((*handlers.ProductHandler).Get))
	mux.HandleFunc("PUT /api/v1/products/{id}", s.withProducts((*handlers.ProductHandler).Replace))
	mux.HandleFunc("PATCH /api/v1/products/{id}", s.withProducts((*handlers.ProductHandler).Patch))
	mux.HandleFunc("DELETE /api/v1/products/{id}", s.withProducts((*handlers.ProductHandler).Delete))
}

func (s *Server) withIDs(fn func(*handlers.IDHandler, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		h := s.idHandler
		s.mu.RUnlock()
		if h == nil {
			unavailable(w, "ID service not configured")
			return
		}
		fn(h, w, r)
	}
}

func (s *Server) withProducts(fn func(*handlers.ProductHandler, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.RLock()
		h := s.productHandler
		s.mu.RUnlock()
		if h == nil {
			unavailable(w, "product service not configured")
			return
		}
		fn(h, w, r)
	}
}

func (s *Server) withDocs(fn func(*handlers.DocsHandler, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.docsHandler == nil {
			unavailable(w, "documentation not available")
			return
		}
		fn(s.docsHandler, w, r)
	}
}

func unavailable(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, "{\"error\":%q,\"code\":\"SERVICE_UNAVAILABLE\"}\n", msg)
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.cfg.Server.Address())
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	if s.rateLimiter != nil {
		if closeErr := s.rateLimiter.Close(); closeErr != nil {
			s.log.Error("failed to close rate limiter", "error", closeErr.Error())
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err.Error())
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the address the server listens on, or "" before Start.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the root handler including middleware.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}

// SetIDHandler sets the ID handler for the server.
func (s *Server) SetIDHandler(h *handlers.IDHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.idHandler = h
}

// SetProductHandler sets the product handler for the server.
func (s *Server) SetProductHandler(h *handlers.ProductHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.productHandler = h
}
