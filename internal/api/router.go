package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.requestMetrics)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", apiKeyHeader},
		MaxAge:         300,
	}))

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealthCheck)
	r.Get("/feed.xml", s.handleFeed)

	r.Group(func(r chi.Router) {
		r.Use(s.basicAuth)
		r.Get("/", s.handleIndex)
		r.Get("/api/articles", s.handleListArticles)
		r.Delete("/api/articles/{id}", s.handleDeleteArticle)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.apiKeyOrBasicAuth)
		r.Post("/api/articles", s.handleCreateArticle)
		r.Post("/api/articles/{id}/refresh-title", s.handleRefreshTitle)
	})

	return r
}
