// Package retitle refreshes stored article titles in the background.
package retitle

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"readinglist/internal/domain"
	"readinglist/internal/monitoring"
	"readinglist/internal/repository"
	"readinglist/internal/titlefetch"
)

const (
	DefaultPopTimeout  = 5 * time.Second
	defaultTaskTimeout = 30 * time.Second
)

// TitleResolver is satisfied by *titlefetch.Resolver.
type TitleResolver interface {
	Resolve(ctx context.Context, rawURL string) titlefetch.Result
}

// TitleUpdater is the slice of the article repository the pool writes to.
type TitleUpdater interface {
	UpdateTitle(ctx context.Context, id int64, title string) error
}

type Options struct {
	Workers int
	// Rate caps title fetches per second across all workers. Zero means unlimited.
	Rate       float64
	PopTimeout time.Duration
}

// Pool drains the retitle queue with a fixed number of workers.
type Pool struct {
	queue      repository.RetitleQueue
	articles   TitleUpdater
	resolver   TitleResolver
	metrics    *monitoring.Metrics
	logger     *zap.Logger
	limiter    *rate.Limiter
	workers    int
	popTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(q repository.RetitleQueue, a TitleUpdater, r TitleResolver, m *monitoring.Metrics, l *zap.Logger, opts Options) *Pool {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.PopTimeout <= 0 {
		opts.PopTimeout = DefaultPopTimeout
	}
	limit := rate.Inf
	if opts.Rate > 0 {
		limit = rate.Limit(opts.Rate)
	}
	if l == nil {
		l = zap.NewNop()
	}
	return &Pool{
		queue:      q,
		articles:   a,
		resolver:   r,
		metrics:    m,
		logger:     l,
		limiter:    rate.NewLimiter(limit, 1),
		workers:    opts.Workers,
		popTimeout: opts.PopTimeout,
	}
}

func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight tasks to return.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("worker", id))

	for ctx.Err() == nil {
		task, err := p.queue.Pop(ctx, p.popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to pop retitle task", zap.Error(err))
			p.incErrors("queue_pop_failed")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.popTimeout):
			}
			continue
		}
		if task == nil {
			continue
		}
		p.process(ctx, logger, *task)
	}
}

func (p *Pool) process(ctx context.Context, logger *zap.Logger, task domain.RetitleTask) {
	logger = logger.With(zap.Int64("article_id", task.ArticleID), zap.String("url", task.URL))
	defer func() {
		// Release with a fresh context so shutdown does not leave the URL marked pending.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := p.queue.Done(releaseCtx, task); err != nil {
			logger.Warn("failed to release retitle task", zap.Error(err))
		}
		p.reportDepth(releaseCtx)
	}()

	if err := p.limiter.Wait(ctx); err != nil {
		return
	}

	taskCtx, cancel := context.WithTimeout(ctx, defaultTaskTimeout)
	defer cancel()

	res := p.resolver.Resolve(taskCtx, task.URL)
	if res.Fallback() {
		logger.Info("title refresh fell back, keeping stored title",
			zap.String("reason", string(res.Reason)), zap.Error(res.Err))
		return
	}

	err := p.articles.UpdateTitle(taskCtx, task.ArticleID, res.Title)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		logger.Info("article deleted before title refresh")
	case err != nil:
		logger.Error("failed to store refreshed title", zap.Error(err))
		p.incErrors("db_save_failed")
	default:
		logger.Info("title refreshed", zap.String("title", res.Title), zap.String("source", string(res.Source)))
	}
}

func (p *Pool) reportDepth(ctx context.Context) {
	if p.metrics == nil {
		return
	}
	if n, err := p.queue.Size(ctx); err == nil {
		p.metrics.SetRetitleQueueDepth(n)
	}
}

func (p *Pool) incErrors(kind string) {
	if p.metrics != nil {
		p.metrics.IncErrorsTotal(kind)
	}
}
