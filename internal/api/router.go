package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/SonianW/MetaPrompter/internal/api/handlers"
	"github.com/SonianW/MetaPrompter/internal/api/middleware"
	"github.com/SonianW/MetaPrompter/internal/auth"
	"github.com/SonianW/MetaPrompter/internal/catalog"
	"github.com/SonianW/MetaPrompter/internal/config"
)

type Router struct {
	mux     *chi.Mux
	cfg     *config.Config
	catalog *catalog.Service
	checks  map[string]handlers.Pinger
	jwt     *auth.JWTMiddleware
}

// NewRouter wires the HTTP surface. checks names the backends /readyz pings.
func NewRouter(cfg *config.Config, svc *catalog.Service, checks map[string]handlers.Pinger) *Router {
	return &Router{
		mux:     chi.NewRouter(),
		cfg:     cfg,
		catalog: svc,
		checks:  checks,
		jwt:     auth.NewJWTMiddleware(cfg.Auth.JWTSecret),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	health := handlers.NewHealthHandler(rt.checks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.jwt.Identify)

		promptH := handlers.NewPromptHandler(rt.catalog)
		r.Route("/prompts", func(r chi.Router) {
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Post("/generate", promptH.Generate)
			r.Get("/{id}", promptH.Get)
			r.Put("/{id}", promptH.Update)
			r.Patch("/{id}", promptH.Update)
			r.Post("/{id}/use", promptH.Use)
			r.Post("/{id}/optimize", promptH.Optimize)
			r.Post("/{id}/evaluate", promptH.Evaluate)
			r.Post("/{id}/score", promptH.Score)
		})
		r.Get("/public-prompts", promptH.Public)
		r.Get("/histories", promptH.Histories)
		r.Get("/statistics", promptH.Statistics)

		llmH := handlers.NewLLMHandler(rt.catalog.Lifecycle())
		r.Get("/templates", llmH.Templates)
		r.Route("/llm", func(r chi.Router) {
			r.Post("/compare", llmH.Compare)
			r.Post("/analyze", llmH.Analyze)
			r.Post("/evaluate", llmH.Evaluate)
			r.Post("/templates/{name}", llmH.RunTemplate)
		})
	})

	return r
}
