// Package importer loads an article export into the store.
//
// Exports come from the previous SQLite-backed deployment, either as a bare JSON array of
// rows or wrapped the way the wrangler CLI prints query results ({"results": [...]}, possibly
// inside an array of result sets). SQLite stores booleans as 0/1 and timestamps as
// "YYYY-MM-DD HH:MM:SS" in UTC; both spellings are accepted alongside JSON booleans and RFC 3339.
package importer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"readinglist/internal/domain"
	"readinglist/internal/repository"
	"readinglist/internal/titlefetch"
	"readinglist/pkg/utils"
)

// Row is one exported article.
type Row struct {
	URL            string   `json:"url"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	ExcludeFromRSS flexBool `json:"exclude_from_rss"`
	ReadAt         string   `json:"read_at"`
}

type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.Trim(string(data), `"`) {
	case "true", "1":
		*b = true
	case "false", "0", "null", "":
		*b = false
	default:
		return fmt.Errorf("invalid boolean %s", data)
	}
	return nil
}

var readAtLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseReadAt(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range readAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized read_at %q", s)
}

// Parse decodes an export in any of the accepted shapes.
func Parse(r io.Reader) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty export")
	}

	type resultSet struct {
		Results []Row `json:"results"`
	}

	switch data[0] {
	case '{':
		var set resultSet
		if err := json.Unmarshal(data, &set); err != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
		return set.Results, nil
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("decode export: %w", err)
		}
		var rows []Row
		for i, item := range raw {
			var probe map[string]json.RawMessage
			if err := json.Unmarshal(item, &probe); err != nil {
				return nil, fmt.Errorf("decode export entry %d: %w", i, err)
			}
			if _, ok := probe["results"]; ok {
				var set resultSet
				if err := json.Unmarshal(item, &set); err != nil {
					return nil, fmt.Errorf("decode export entry %d: %w", i, err)
				}
				rows = append(rows, set.Results...)
				continue
			}
			var row Row
			if err := json.Unmarshal(item, &row); err != nil {
				return nil, fmt.Errorf("decode export entry %d: %w", i, err)
			}
			rows = append(rows, row)
		}
		return rows, nil
	}
	return nil, errors.New("export must be a JSON array or object")
}

// Stats summarizes one import run.
type Stats struct {
	Imported  int
	Duplicate int
	Invalid   int
	Queued    int
}

type Importer struct {
	articles repository.ArticleRepository
	queue    repository.RetitleQueue
	logger   *zap.Logger
}

func New(articles repository.ArticleRepository, queue repository.RetitleQueue, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{articles: articles, queue: queue, logger: logger}
}

// Import stores rows in order. Rows without a title get the hostname as a placeholder and a
// title refresh is queued for them. With dryRun nothing is written, but rows are still validated.
func (im *Importer) Import(ctx context.Context, rows []Row, dryRun bool) (Stats, error) {
	var stats Stats
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		logger := im.logger.With(zap.Int("row", i+1), zap.String("url", row.URL))

		if _, err := utils.ParseArticleURL(row.URL); err != nil {
			logger.Warn("skipping row with invalid url")
			stats.Invalid++
			continue
		}
		readAt, err := parseReadAt(row.ReadAt)
		if err != nil {
			logger.Warn("skipping row with invalid read_at", zap.Error(err))
			stats.Invalid++
			continue
		}

		article := domain.Article{
			Title:          strings.TrimSpace(row.Title),
			URL:            strings.TrimSpace(row.URL),
			Description:    row.Description,
			ExcludeFromRSS: bool(row.ExcludeFromRSS),
			ReadAt:         readAt,
		}
		needsTitle := article.Title == ""
		if needsTitle {
			article.Title, _ = titlefetch.DomainFallback(article.URL)
		}

		if dryRun {
			stats.Imported++
			if needsTitle {
				stats.Queued++
			}
			continue
		}

		id, err := im.articles.Create(ctx, &article)
		if errors.Is(err, repository.ErrDuplicateURL) {
			logger.Info("skipping duplicate url")
			stats.Duplicate++
			continue
		}
		if err != nil {
			return stats, fmt.Errorf("import row %d: %w", i+1, err)
		}
		stats.Imported++

		if needsTitle && im.queue != nil {
			queued, err := im.queue.Push(ctx, domain.RetitleTask{ArticleID: id, URL: article.URL, EnqueuedAt: time.Now().UTC()})
			if err != nil {
				logger.Warn("failed to enqueue title refresh", zap.Error(err))
				continue
			}
			if queued {
				stats.Queued++
			}
		}
	}
	return stats, nil
}
