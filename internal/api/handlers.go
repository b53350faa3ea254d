package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"readinglist/internal/domain"
	"readinglist/internal/feed"
	"readinglist/internal/repository"
	"readinglist/internal/titlefetch"
	"readinglist/pkg/utils"
)

const listLimit = 50

//go:embed static/index.html
var indexHTML []byte

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}

func (s *Server) handleListArticles(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.List(r.Context(), listLimit)
	if err != nil {
		s.logger.Error("failed to list articles", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Failed to fetch articles")
		return
	}
	s.respondWithJSON(w, http.StatusOK, domain.ArticleListResponse{Articles: articles})
}

func (s *Server) handleCreateArticle(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if _, err := utils.ParseArticleURL(rawURL); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid URL format")
		return
	}

	article := domain.Article{
		Title:          strings.TrimSpace(req.Title),
		URL:            rawURL,
		Description:    req.Description,
		ExcludeFromRSS: req.PublishRSS != nil && !*req.PublishRSS,
	}

	origin := "supplied"
	var resolved titlefetch.Result
	if article.Title == "" {
		resolved = s.resolver.Resolve(r.Context(), rawURL)
		article.Title = resolved.Title
		origin = "resolved"
	}

	id, err := s.articles.Create(r.Context(), &article)
	if errors.Is(err, repository.ErrDuplicateURL) {
		s.respondWithError(w, http.StatusConflict, "This URL has already been added")
		return
	}
	if err != nil {
		s.logger.Error("failed to add article", zap.String("url", rawURL), zap.Error(err))
		s.metrics.IncErrorsTotal("db_save_failed")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to add article")
		return
	}
	s.metrics.IncArticlesRegistered(origin)

	if retryable(resolved.Reason) {
		s.enqueueRetitle(r.Context(), id, rawURL)
	}

	s.respondWithJSON(w, http.StatusOK, domain.APIResponse{
		Success: true,
		Message: "Article added successfully",
		Data: domain.ArticleResponse{
			Title:       article.Title,
			URL:         article.URL,
			Description: article.Description,
		},
	})
}

// retryable reports whether a fallback might resolve on a later attempt.
func retryable(reason titlefetch.FallbackReason) bool {
	switch reason {
	case titlefetch.ReasonFetchTimeout, titlefetch.ReasonFetchFailed, titlefetch.ReasonHTTPStatus:
		return true
	}
	return false
}

func (s *Server) enqueueRetitle(ctx context.Context, id int64, rawURL string) {
	_, err := s.queue.Push(ctx, domain.RetitleTask{ArticleID: id, URL: rawURL, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		s.logger.Warn("failed to enqueue title refresh", zap.Int64("article_id", id), zap.Error(err))
		s.metrics.IncErrorsTotal("enqueue_failed")
	}
}

func (s *Server) handleDeleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	err := s.articles.Delete(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to delete article", zap.Int64("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Failed to delete article")
		return
	}
	s.respondWithJSON(w, http.StatusOK, domain.APIResponse{Success: true, Message: "Article deleted"})
}

func (s *Server) handleRefreshTitle(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	article, err := s.articles.Get(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		s.respondWithError(w, http.StatusNotFound, "Article not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to load article", zap.Int64("id", id), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Failed to load article")
		return
	}

	queued, err := s.queue.Push(r.Context(), domain.RetitleTask{ArticleID: article.ID, URL: article.URL, EnqueuedAt: time.Now().UTC()})
	if err != nil {
		s.logger.Error("failed to enqueue title refresh", zap.Int64("id", id), zap.Error(err))
		s.metrics.IncErrorsTotal("enqueue_failed")
		s.respondWithError(w, http.StatusInternalServerError, "Failed to schedule title refresh")
		return
	}

	message := "Title refresh scheduled"
	if !queued {
		message = "Title refresh already pending"
	}
	s.respondWithJSON(w, http.StatusAccepted, domain.APIResponse{Success: true, Message: message})
}

func (s *Server) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "Invalid article id")
		return 0, false
	}
	return id, true
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	articles, err := s.articles.ListForFeed(r.Context(), s.config.FeedLimit)
	if err != nil {
		s.logger.Error("failed to load feed articles", zap.Error(err))
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	var buf strings.Builder
	err = feed.Render(&buf, articles, feed.Options{
		Title:    s.config.FeedTitle,
		Link:     s.config.FeedLink,
		Location: s.feedLocation,
	})
	if err != nil {
		s.logger.Error("failed to render feed", zap.Error(err))
		http.Error(w, "Failed to generate RSS feed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Header().Set("Cache-Control", "max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(buf.String()))
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	healthStatus := map[string]string{"postgres": "healthy", "redis": "healthy"}

	if err := s.articles.Ping(ctx); err != nil {
		healthStatus["postgres"] = "unhealthy"
		s.logger.Error("health check failed for postgres", zap.Error(err))
	}
	if err := s.queue.Ping(ctx); err != nil {
		healthStatus["redis"] = "unhealthy"
		s.logger.Error("health check failed for redis", zap.Error(err))
	}

	if healthStatus["postgres"] != "healthy" || healthStatus["redis"] != "healthy" {
		s.respondWithJSON(w, http.StatusServiceUnavailable, healthStatus)
		return
	}
	s.respondWithJSON(w, http.StatusOK, healthStatus)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		code = http.StatusInternalServerError
		response = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
