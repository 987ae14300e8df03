package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/HyperIoT-Labs/HyperIoT-DS/internal/observability"
)

// NewRouter creates the HTTP router. metrics may be nil, in which case
// /metrics is not mounted. pluginMiddleware wraps only the /api/plugin routes.
func NewRouter(h *Handler, metrics http.Handler, tracer oteltrace.Tracer, pluginMiddleware ...func(http.Handler) http.Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", userIDHeader},
		MaxAge:         300,
	}))
	if tracer != nil {
		r.Use(observability.MetricsAndTracingMiddleware(tracer, h.serviceName))
	}

	r.Get("/health", h.Health)
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Route("/api/plugin", func(r chi.Router) {
		r.Use(pluginMiddleware...)
		r.Get("/tools", h.ListTools)
		r.Post("/tools/{name}", h.CallTool)
		r.Post("/hooks/agent-prompt-prefix", h.AgentPromptPrefix)
	})

	return r
}
