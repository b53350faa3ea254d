package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"readinglist/internal/domain"
	"readinglist/internal/repository"
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS articles (
		id               BIGSERIAL PRIMARY KEY,
		title            TEXT        NOT NULL,
		url              TEXT        NOT NULL UNIQUE,
		description      TEXT        NOT NULL DEFAULT '',
		exclude_from_rss BOOLEAN     NOT NULL DEFAULT FALSE,
		read_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_read_at ON articles (read_at DESC)`,
}

const articleColumns = `id, title, url, description, exclude_from_rss, read_at`

// PostgresStore handles interactions with the PostgreSQL database.
type PostgresStore struct {
	db    DB
	close func()
}

var _ repository.ArticleRepository = (*PostgresStore)(nil)

// NewPostgresStore opens a connection pool for connStr.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: pool, close: pool.Close}, nil
}

// NewArticleStore wraps an existing connection.
func NewArticleStore(db DB) *PostgresStore {
	return &PostgresStore{db: db, close: func() {}}
}

func (s *PostgresStore) Close() {
	s.close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// EnsureSchema creates the articles table and its index if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]domain.Article, error) {
	return s.list(ctx,
		`SELECT `+articleColumns+` FROM articles ORDER BY read_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) ListForFeed(ctx context.Context, limit int) ([]domain.Article, error) {
	return s.list(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE exclude_from_rss = FALSE ORDER BY read_at DESC LIMIT $1`, limit)
}

func (s *PostgresStore) list(ctx context.Context, query string, limit int) ([]domain.Article, error) {
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	articles := make([]domain.Article, 0, limit)
	for rows.Next() {
		var a domain.Article
		if err := rows.Scan(&a.ID, &a.Title, &a.URL, &a.Description, &a.ExcludeFromRSS, &a.ReadAt); err != nil {
			return nil, err
		}
		articles = append(articles, a)
	}
	return articles, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*domain.Article, error) {
	var a domain.Article
	err := s.db.QueryRow(ctx,
		`SELECT `+articleColumns+` FROM articles WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.URL, &a.Description, &a.ExcludeFromRSS, &a.ReadAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) Create(ctx context.Context, article *domain.Article) (int64, error) {
	var readAt *time.Time
	if !article.ReadAt.IsZero() {
		readAt = &article.ReadAt
	}

	var id int64
	err := s.db.QueryRow(ctx,
		`INSERT INTO articles (title, url, description, exclude_from_rss, read_at)
		 VALUES ($1, $2, $3, $4, COALESCE($5, NOW()))
		 RETURNING id`,
		article.Title, article.URL, article.Description, article.ExcludeFromRSS, readAt,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, repository.ErrDuplicateURL
		}
		return 0, err
	}
	return id, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateTitle(ctx context.Context, id int64, title string) error {
	tag, err := s.db.Exec(ctx, `UPDATE articles SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
