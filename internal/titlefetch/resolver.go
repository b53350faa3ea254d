// Package titlefetch derives a human-readable title for an arbitrary web page.
//
// The pipeline is Fetch → content-type gate → charset resolution → decode → extract, and
// every failure along the way degrades to the URL's hostname. Resolve never returns an
// error; the outcome, including why a fallback was taken, is reported in Result.
package titlefetch

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// FallbackReason tags why a resolution ended in the domain fallback.
type FallbackReason string

const (
	ReasonNone         FallbackReason = ""
	ReasonInvalidURL   FallbackReason = "invalid_url"
	ReasonFetchTimeout FallbackReason = "fetch_timeout"
	ReasonFetchFailed  FallbackReason = "fetch_failed"
	ReasonHTTPStatus   FallbackReason = "http_status"
	ReasonContentType  FallbackReason = "content_type"
	ReasonNoCandidate  FallbackReason = "no_candidate"
)

// Result is the outcome of one resolution.
type Result struct {
	Title      string
	Source     Source
	Reason     FallbackReason
	Charset    CharsetHint
	StatusCode int
	Err        error
}

// Fallback reports whether Title came from the domain fallback rather than the page.
func (r Result) Fallback() bool {
	return r.Reason != ReasonNone
}

// Observer receives one call per finished resolution.
type Observer interface {
	ObserveTitleResolution(source, reason string, elapsed time.Duration)
}

// Resolver runs the title pipeline. It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	fetcher  *Fetcher
	logger   *zap.Logger
	observer Observer
}

type Option func(*Resolver)

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithObserver(o Observer) Option {
	return func(r *Resolver) { r.observer = o }
}

func NewResolver(f *Fetcher, opts ...Option) *Resolver {
	if f == nil {
		f = NewFetcher(FetcherOptions{})
	}
	r := &Resolver{fetcher: f, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Title returns the display title for rawURL.
func (r *Resolver) Title(ctx context.Context, rawURL string) string {
	return r.Resolve(ctx, rawURL).Title
}

// Resolve runs the full pipeline for rawURL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) Result {
	start := time.Now()
	res := r.resolve(ctx, rawURL)
	if r.observer != nil {
		r.observer.ObserveTitleResolution(string(res.Source), string(res.Reason), time.Since(start))
	}
	return res
}

func (r *Resolver) resolve(ctx context.Context, rawURL string) Result {
	if !fetchable(rawURL) {
		return r.fallback(rawURL, ReasonInvalidURL, nil)
	}

	resp, err := r.fetcher.Fetch(ctx, strings.TrimSpace(rawURL))
	if err != nil {
		var statusErr *StatusError
		switch {
		case errors.Is(err, ErrFetchTimeout):
			r.logger.Warn("title fetch timed out", zap.String("url", rawURL), zap.Error(err))
			return r.fallback(rawURL, ReasonFetchTimeout, err)
		case errors.As(err, &statusErr):
			r.logger.Warn("title fetch returned error status", zap.String("url", rawURL), zap.Int("status", statusErr.StatusCode))
			res := r.fallback(rawURL, ReasonHTTPStatus, err)
			res.StatusCode = statusErr.StatusCode
			return res
		default:
			r.logger.Warn("title fetch failed", zap.String("url", rawURL), zap.Error(err))
			return r.fallback(rawURL, ReasonFetchFailed, err)
		}
	}

	contentType := resp.ContentType()
	if !IsHTML(contentType) {
		r.logger.Debug("skipping non-HTML content", zap.String("url", rawURL), zap.String("content_type", contentType))
		res := r.fallback(rawURL, ReasonContentType, nil)
		res.StatusCode = resp.StatusCode
		return res
	}

	hint := ResolveCharset(contentType, resp.Body)
	doc, supported := Decode(resp.Body, hint.Name)
	if !supported {
		r.logger.Warn("unsupported charset, decoding as utf-8", zap.String("url", rawURL), zap.String("charset", hint.Name))
	}

	title, source, ok, err := ExtractTitle(doc.Text)
	if err != nil || !ok {
		if err != nil {
			r.logger.Debug("html parse failed", zap.String("url", rawURL), zap.Error(err))
		}
		res := r.fallback(rawURL, ReasonNoCandidate, err)
		res.Charset = CharsetHint{Source: hint.Source, Name: doc.CharsetUsed}
		res.StatusCode = resp.StatusCode
		return res
	}

	return Result{
		Title:      title,
		Source:     source,
		Reason:     ReasonNone,
		Charset:    CharsetHint{Source: hint.Source, Name: doc.CharsetUsed},
		StatusCode: resp.StatusCode,
	}
}

func (r *Resolver) fallback(rawURL string, reason FallbackReason, err error) Result {
	title, source := DomainFallback(rawURL)
	return Result{Title: title, Source: source, Reason: reason, Err: err}
}

// fetchable reports whether rawURL parses to an absolute URL with a host.
func fetchable(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	return err == nil && u.IsAbs() && u.Hostname() != ""
}
