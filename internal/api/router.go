package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type RouterConfig struct {
	AllowedOrigins []string
	// RequestTimeout bounds each request. Scrapes should fit well inside it.
	RequestTimeout time.Duration
	// Metrics is mounted on /metrics when set.
	Metrics http.Handler
}

func NewRouter(h *Handlers, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:*", "https://localhost:*"}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", h.Health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/scrape", func(r chi.Router) {
			r.Post("/", h.ScrapeProduct)
			r.Post("/price", h.ScrapePrice)
		})

		r.Route("/products", func(r chi.Router) {
			r.Post("/", h.TrackProduct)
			r.Get("/", h.ListProducts)
			r.Get("/{id}", h.GetProduct)
			r.Post("/{id}/subscribers", h.AddSubscriber)
		})

		r.Post("/history/merge", h.MergeHistory)
	})

	return r
}
