package titlefetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
)

const testHost = "127.0.0.1"

func newTestResolver(opts FetcherOptions) *Resolver {
	return NewResolver(NewFetcher(opts))
}

func serve(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func mustEncode(t *testing.T, enc interface {
	String(string) (string, error)
}, s string) []byte {
	t.Helper()
	out, err := enc.String(s)
	require.NoError(t, err)
	return []byte(out)
}

func TestResolveShiftJISFromHeader(t *testing.T) {
	body := mustEncode(t, japanese.ShiftJIS.NewEncoder(), "<html><head><title>日本語タイトル</title></head><body></body></html>")
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=shift_jis")
		w.Write(body)
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "日本語タイトル", res.Title)
	assert.Equal(t, SourceTitleElement, res.Source)
	assert.False(t, res.Fallback())
	assert.Equal(t, CharsetHint{Source: CharsetFromHeader, Name: "shift_jis"}, res.Charset)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestResolveEUCJPFromMetaTag(t *testing.T) {
	body := mustEncode(t, japanese.EUCJP.NewEncoder(), `<html><head><meta charset="euc-jp"><title>日本語のページ</title></head></html>`)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(body)
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "日本語のページ", res.Title)
	assert.Equal(t, CharsetHint{Source: CharsetFromMeta, Name: "euc-jp"}, res.Charset)
}

func TestResolveMetaCharsetOverridesHeader(t *testing.T) {
	body := mustEncode(t, japanese.ShiftJIS.NewEncoder(),
		`<html><head><meta http-equiv="Content-Type" content="text/html; charset=Shift_JIS"><title>設定ミスのサーバー</title></head></html>`)
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		w.Write(body)
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "設定ミスのサーバー", res.Title)
	assert.Equal(t, CharsetFromMeta, res.Charset.Source)
}

func TestResolveOGTitleFallback(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><meta property="og:title" content="Fallback Title"></head><body>hi</body></html>`))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "Fallback Title", res.Title)
	assert.Equal(t, SourceOGTitle, res.Source)
}

func TestResolveNonHTMLSkipsParsing(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("<title>not really html</title>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL+"/paper.pdf")

	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, SourceHostname, res.Source)
	assert.Equal(t, ReasonContentType, res.Reason)
	assert.Empty(t, res.Charset.Name)
}

func TestResolveSlowNonHTMLBodyIsNotRead(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.7\n"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	res := newTestResolver(FetcherOptions{Timeout: 2 * time.Second}).Resolve(context.Background(), srv.URL+"/big.pdf")

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonContentType, res.Reason)
	assert.NoError(t, res.Err)
}

func TestResolveMissingContentType(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		// Suppress net/http content sniffing.
		w.Header()["Content-Type"] = nil
		w.Write([]byte("<html><head><title>Sniffable</title></head></html>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonContentType, res.Reason)
}

func TestResolveTimeoutCancelsRequest(t *testing.T) {
	cancelled := make(chan struct{})
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			close(cancelled)
		case <-time.After(5 * time.Second):
		}
	})

	start := time.Now()
	res := newTestResolver(FetcherOptions{Timeout: 100 * time.Millisecond}).Resolve(context.Background(), srv.URL)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonFetchTimeout, res.Reason)
	assert.ErrorIs(t, res.Err, ErrFetchTimeout)

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight request was not cancelled")
	}
}

func TestResolveInvalidURLReturnsInput(t *testing.T) {
	r := newTestResolver(FetcherOptions{})
	for _, raw := range []string{"not a url", "://broken", "mailto:someone@example.com"} {
		res := r.Resolve(context.Background(), raw)
		assert.Equal(t, raw, res.Title)
		assert.Equal(t, SourceRawURL, res.Source)
		assert.Equal(t, ReasonInvalidURL, res.Reason)
	}
}

func TestResolveHTTPErrorStatus(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<title>Not Found</title>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonHTTPStatus, res.Reason)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	var statusErr *StatusError
	require.ErrorAs(t, res.Err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestResolveConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), addr)

	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonFetchFailed, res.Reason)
}

func TestResolveNoCandidates(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><p>no title here</p></body></html>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, testHost, res.Title)
	assert.Equal(t, ReasonNoCandidate, res.Reason)
	assert.Equal(t, "utf-8", res.Charset.Name)
}

func TestResolveUnknownCharsetDecodesAsUTF8(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=x-klingon")
		w.Write([]byte("<title>Café Menu</title>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "Café Menu", res.Title)
	assert.Equal(t, "utf-8", res.Charset.Name)
}

func TestResolveUTF16MetaInASCIIDocument(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<meta charset="utf-16"><title>Plain ASCII Title</title>`))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "Plain ASCII Title", res.Title)
	assert.Equal(t, SourceTitleElement, res.Source)
	assert.Equal(t, "utf-8", res.Charset.Name)
}

func TestResolveReplacementCharsetDecodesAsUTF8(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-2022-kr")
		w.Write([]byte("<title>Plain ASCII Title</title>"))
	})

	res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)

	assert.Equal(t, "Plain ASCII Title", res.Title)
	assert.Equal(t, "utf-8", res.Charset.Name)
}

func TestResolveCompressedBodies(t *testing.T) {
	page := []byte("<html><head><title>Compressed Page</title></head></html>")

	tests := map[string]func(w http.ResponseWriter){
		"gzip": func(w http.ResponseWriter) {
			gz := gzip.NewWriter(w)
			gz.Write(page)
			gz.Close()
		},
		"br": func(w http.ResponseWriter) {
			br := brotli.NewWriter(w)
			br.Write(page)
			br.Close()
		},
	}

	for encoding, write := range tests {
		t.Run(encoding, func(t *testing.T) {
			srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html; charset=utf-8")
				w.Header().Set("Content-Encoding", encoding)
				write(w)
			})

			res := newTestResolver(FetcherOptions{}).Resolve(context.Background(), srv.URL)
			assert.Equal(t, "Compressed Page", res.Title)
		})
	}
}

func TestFetchSendsBotHeaders(t *testing.T) {
	var got http.Header
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>ok</title>"))
	})

	resp, err := NewFetcher(FetcherOptions{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, DefaultUserAgent, got.Get("User-Agent"))
	assert.Contains(t, got.Get("Accept"), "text/html")
	assert.Contains(t, got.Get("Accept"), "application/xhtml+xml")
}

func TestFetchCapsBodySize(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write(make([]byte, 4096))
	})

	resp, err := NewFetcher(FetcherOptions{MaxBodyBytes: 100}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

type recordingObserver struct {
	mu    sync.Mutex
	calls [][2]string
}

func (o *recordingObserver) ObserveTitleResolution(source, reason string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, [2]string{source, reason})
}

func TestResolveConcurrentCallsAreIndependent(t *testing.T) {
	srv := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<title>" + r.URL.Path + "</title>"))
	})

	obs := &recordingObserver{}
	r := NewResolver(NewFetcher(FetcherOptions{}), WithObserver(obs))

	paths := []string{"/a", "/b", "/c", "/d", "/e", "/f", "/g", "/h"}
	results := make([]string, len(paths))
	var wg sync.WaitGroup
	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			results[i] = r.Title(context.Background(), srv.URL+p)
		}(i, p)
	}
	wg.Wait()

	assert.Equal(t, paths, results)
	assert.Len(t, obs.calls, len(paths))
	for _, c := range obs.calls {
		assert.Equal(t, [2]string{string(SourceTitleElement), ""}, c)
	}
}
