package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/handlers"
	"github.com/Hampusfredrik/mindmap/interfaces/http/rest/middleware"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
	"github.com/Hampusfredrik/mindmap/pkg/observability"
)

// ReadinessCheck reports whether the storage backend can serve requests
type ReadinessCheck func(ctx context.Context) error

// RouterConfig holds HTTP settings
type RouterConfig struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	// Tracer starts a server span per request; nil leaves requests untraced
	Tracer trace.Tracer
}

// Router creates and configures the HTTP router
type Router struct {
	cfg     RouterConfig
	graphs  *handlers.GraphHandler
	nodes   *handlers.NodeHandler
	edges   *handlers.EdgeHandler
	authn   middleware.Authenticator
	ready   ReadinessCheck
	metrics *observability.Collector
	errs    *pkgerrors.ErrorHandler
	logger  *zap.Logger
}

// NewRouter creates a new router instance. A nil metrics collector disables
// request metrics and the /metrics endpoint.
func NewRouter(
	cfg RouterConfig,
	graphs *handlers.GraphHandler,
	nodes *handlers.NodeHandler,
	edges *handlers.EdgeHandler,
	authn middleware.Authenticator,
	ready ReadinessCheck,
	metrics *observability.Collector,
	errs *pkgerrors.ErrorHandler,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:     cfg,
		graphs:  graphs,
		nodes:   nodes,
		edges:   edges,
		authn:   authn,
		ready:   ready,
		metrics: metrics,
		errs:    errs,
		logger:  logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	if rt.cfg.Tracer != nil {
		router.Use(middleware.Tracing(rt.cfg.Tracer))
	}
	router.Use(middleware.Logger(rt.logger))
	router.Use(rt.errs.Middleware)
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errs.HandleStatus(w, r, http.StatusNotFound, "Route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errs.HandleStatus(w, r, http.StatusMethodNotAllowed, "Method not allowed")
	})

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		if rt.cfg.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(rt.cfg.RequestTimeout))
		}
		r.Use(rt.authn)

		r.Route("/graphs", func(r chi.Router) {
			r.Get("/", rt.graphs.ListGraphs)
			r.Post("/", rt.graphs.CreateGraph)
			r.Get("/{graphID}", rt.graphs.GetGraph)
			r.Delete("/{graphID}", rt.graphs.DeleteGraph)
		})

		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", rt.nodes.CreateNode)
			r.Put("/{nodeID}", rt.nodes.UpdateNode)
			r.Delete("/{nodeID}", rt.nodes.DeleteNode)
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", rt.edges.CreateEdge)
			r.Put("/{edgeID}", rt.edges.UpdateEdge)
			r.Delete("/{edgeID}", rt.edges.DeleteEdge)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports ready only while the storage backend answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			rt.errs.Handle(w, req, pkgerrors.NewUnavailableError("storage").WithCause(err))
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
