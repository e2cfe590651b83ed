// Package rest wires the HTTP surface: health probes, metrics, the
// read-side graph endpoints and the interactive session endpoints.
package rest

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	querybus "storygraph/application/queries/bus"
	"storygraph/application/session"
	"storygraph/interfaces/http/rest/handlers"
	"storygraph/interfaces/http/rest/middleware"
	pkgerrors "storygraph/pkg/errors"
	"storygraph/pkg/observability"
)

// Router creates and configures the HTTP router.
type Router struct {
	queryBus        *querybus.QueryBus
	sessions        *session.Manager
	sessionDefaults func() session.Config
	logger          *zap.Logger
	metrics         *observability.Collector
	errors          *pkgerrors.ErrorHandler
	enableCORS      bool
	enableMetrics   bool
}

// NewRouter creates a new router instance.
func NewRouter(
	queryBus *querybus.QueryBus,
	sessions *session.Manager,
	sessionDefaults func() session.Config,
	logger *zap.Logger,
	metrics *observability.Collector,
	errorHandler *pkgerrors.ErrorHandler,
	enableCORS bool,
	enableMetrics bool,
) *Router {
	return &Router{
		queryBus:        queryBus,
		sessions:        sessions,
		sessionDefaults: sessionDefaults,
		logger:          logger,
		metrics:         metrics,
		errors:          errorHandler,
		enableCORS:      enableCORS,
		enableMetrics:   enableMetrics,
	}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.enableMetrics {
		router.Use(middleware.Metrics(rt.metrics))
	}

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.enableMetrics {
		router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		graphHandler := handlers.NewGraphHandler(rt.queryBus, rt.logger, rt.errors)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/graph", graphHandler.GetRelationGraph)
			r.Get("/chapters", graphHandler.ListChapters)
		})

		sessionHandler := handlers.NewSessionHandler(rt.sessions, rt.sessionDefaults, rt.logger, rt.errors)
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.Create)
			r.Get("/{sessionID}/ws", sessionHandler.Stream)
			r.Delete("/{sessionID}", sessionHandler.Delete)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready","sessions":` + strconv.Itoa(rt.sessions.Len()) + `}`))
}
