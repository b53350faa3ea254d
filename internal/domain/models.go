package domain

import "time"

// Article is a saved reading-list entry.
type Article struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	URL            string    `json:"url"`
	Description    string    `json:"description"`
	ExcludeFromRSS bool      `json:"exclude_from_rss"`
	ReadAt         time.Time `json:"read_at"`
}

// CreateArticleRequest is the payload for POST /api/articles.
type CreateArticleRequest struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	// PublishRSS defaults to true when omitted.
	PublishRSS *bool `json:"publish_rss,omitempty"`
}

// ArticleResponse is the data echoed back after a successful registration.
type ArticleResponse struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// ArticleListResponse is the API response for GET /api/articles.
type ArticleListResponse struct {
	Articles []Article `json:"articles"`
}

// APIResponse is the envelope for mutating endpoints.
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// RetitleTask asks a worker to re-resolve the title of a stored article.
type RetitleTask struct {
	ArticleID  int64     `json:"article_id"`
	URL        string    `json:"url"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
