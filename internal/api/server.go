package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"readinglist/internal/config"
	"readinglist/internal/monitoring"
	"readinglist/internal/repository"
	"readinglist/internal/titlefetch"
)

// ArticleStore is the article repository plus a health probe.
type ArticleStore interface {
	repository.ArticleRepository
	Ping(ctx context.Context) error
}

// RetitleQueue is the refresh queue plus a health probe.
type RetitleQueue interface {
	repository.RetitleQueue
	Ping(ctx context.Context) error
}

// TitleResolver is satisfied by *titlefetch.Resolver.
type TitleResolver interface {
	Resolve(ctx context.Context, rawURL string) titlefetch.Result
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	config       *config.Config
	router       http.Handler
	httpServer   *http.Server
	articles     ArticleStore
	queue        RetitleQueue
	resolver     TitleResolver
	feedLocation *time.Location
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

func NewServer(cfg *config.Config, as ArticleStore, q RetitleQueue, tr TitleResolver, loc *time.Location, m *monitoring.Metrics, l *zap.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	s := &Server{
		config:       cfg,
		articles:     as,
		queue:        q,
		resolver:     tr,
		feedLocation: loc,
		metrics:      m,
		logger:       l,
	}
	s.router = s.setupRouter()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%s", s.config.ServerPort),
		Handler: s.router,
		// Registration resolves titles synchronously, so leave room for one full fetch.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: s.config.TitleFetchTimeout + 10*time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
