package api

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

const (
	authRealm    = "RSS Feed Manager"
	apiKeyHeader = "X-API-Key"
)

// basicAuth guards the management routes. Unset credentials answer 500 on every request.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	if s.config.BasicUsername == "" || s.config.BasicPassword == "" {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s.logger.Error("BASIC_USERNAME or BASIC_PASSWORD not configured")
			http.Error(w, "Server configuration error", http.StatusInternalServerError)
		})
	}
	return middleware.BasicAuth(authRealm, map[string]string{
		s.config.BasicUsername: s.config.BasicPassword,
	})(next)
}

// apiKeyOrBasicAuth lets shortcut clients in with X-API-Key and falls back to basic auth.
func (s *Server) apiKeyOrBasicAuth(next http.Handler) http.Handler {
	basic := s.basicAuth(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.validAPIKey(r.Header.Get(apiKeyHeader)) {
			next.ServeHTTP(w, r)
			return
		}
		basic.ServeHTTP(w, r)
	})
}

func (s *Server) validAPIKey(key string) bool {
	if s.config.APIKey == "" || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.config.APIKey)) == 1
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("HTTP Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", statusOf(ww)),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("remote_addr", r.RemoteAddr),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// requestMetrics labels by route pattern so ids in paths do not explode cardinality.
func (s *Server) requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		s.metrics.ObserveHTTPRequest(r.Method, route, statusOf(ww), time.Since(start))
	})
}

func statusOf(ww middleware.WrapResponseWriter) int {
	if ww.Status() == 0 {
		return http.StatusOK
	}
	return ww.Status()
}
