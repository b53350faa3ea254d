package repository

import (
	"context"
	"errors"

	"readinglist/internal/domain"
)

var (
	// ErrNotFound is returned when no article matches the given id.
	ErrNotFound = errors.New("article not found")
	// ErrDuplicateURL is returned when an article with the same URL is already stored.
	ErrDuplicateURL = errors.New("article already exists")
)

// ArticleRepository defines the contract for persisting reading-list articles.
type ArticleRepository interface {
	// List returns up to limit articles, most recently read first.
	List(ctx context.Context, limit int) ([]domain.Article, error)
	// ListForFeed is List without the articles excluded from RSS.
	ListForFeed(ctx context.Context, limit int) ([]domain.Article, error)
	Get(ctx context.Context, id int64) (*domain.Article, error)
	// Create stores a new article and returns its id. A zero ReadAt means now.
	Create(ctx context.Context, article *domain.Article) (int64, error)
	Delete(ctx context.Context, id int64) error
	UpdateTitle(ctx context.Context, id int64, title string) error
}
