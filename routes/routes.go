// Package routes assembles the chi router.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/petroflow/billing-control-plane/app"
	"github.com/petroflow/billing-control-plane/middleware"
)

// New builds the HTTP router with all middleware and routes mounted.
func New(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.HTTPMiddleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Probes and metrics stay outside the authenticated surface.
	r.Get("/healthz", deps.HealthHandler.Healthz)
	r.Get("/readyz", deps.HealthHandler.Readyz)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.AuthMiddleware.RequireAuth)

		r.Route("/policies", func(r chi.Router) {
			r.Post("/evaluate", deps.EvaluationHandler.Evaluate)
			r.Post("/", deps.PolicyHandler.Create)
			r.Get("/", deps.PolicyHandler.List)
			r.Get("/{id}", deps.PolicyHandler.Get)
			r.Patch("/{id}", deps.PolicyHandler.Update)
			r.Delete("/{id}", deps.PolicyHandler.Delete)
		})

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", deps.DocumentHandler.Create)
			r.Get("/{id}", deps.DocumentHandler.Get)
		})
	})

	return otelhttp.NewHandler(r, "billing-control-plane")
}
