package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"unscored/internal/cache"
	"unscored/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *int32) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Options{
		BaseURL:      srv.URL,
		UserAgent:    "unscored-test",
		APIKey:       "key",
		APISecret:    "secret",
		Timeout:      time.Second,
		CooldownMin:  time.Millisecond,
		CooldownMax:  2 * time.Millisecond,
		CacheEnabled: true,
	}, cache.NewMemoryCache())

	var sleeps int32
	c.sleep = func(_ context.Context, _ time.Duration) { atomic.AddInt32(&sleeps, 1) }
	return c, &sleeps
}

func TestRequestRetriesNonJSONThenFails(t *testing.T) {
	var calls int32
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	})

	res := c.Request(context.Background(), http.MethodGet, PostEndpoint, url.Values{"id": {"1"}}, 0)
	assert.False(t, res.Status)
	assert.Equal(t, "Failed", res.Error)
	assert.Equal(t, int32(MaxAttempts), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(MaxAttempts), atomic.LoadInt32(sleeps), "cooldown follows every attempt")
}

func TestRequestRecoversAfterTransientFailure(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			_, _ = w.Write([]byte("not json"))
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"posts":[]}`))
	})

	res := c.Request(context.Background(), http.MethodGet, NewPostsEndpoint, nil, 0)
	assert.True(t, res.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRequestDoesNotRetryAPIError(t *testing.T) {
	var calls int32
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":false,"error":"user is suspended"}`))
	})

	res := c.Request(context.Background(), http.MethodGet, UserAboutEndpoint, url.Values{"user": {"x"}}, time.Minute)
	assert.False(t, res.Status)
	assert.Equal(t, "user is suspended", res.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(sleeps))

	// errors are never cached
	c.Request(context.Background(), http.MethodGet, UserAboutEndpoint, url.Values{"user": {"x"}}, time.Minute)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRequestCachesSuccessfulResponses(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"status":true}`))
	})
	ctx := context.Background()
	params := url.Values{"id": {"42"}, "comments": {"true"}}

	assert.True(t, c.Request(ctx, http.MethodGet, PostEndpoint, params, time.Minute).Status)
	assert.True(t, c.Request(ctx, http.MethodGet, PostEndpoint, params, time.Minute).Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// ttl 0 bypasses the cache
	assert.True(t, c.Request(ctx, http.MethodGet, PostEndpoint, params, 0).Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// different params are a different entry
	assert.True(t, c.Request(ctx, http.MethodGet, PostEndpoint, url.Values{"id": {"43"}}, time.Minute).Status)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestRequestHeadersAndMethods(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "unscored-test", r.Header.Get("User-Agent"))
		assert.Equal(t, "key", r.Header.Get("X-Api-Key"))
		assert.Equal(t, "secret", r.Header.Get("X-Api-Secret"))
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "conspiracies", r.URL.Query().Get("community"))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "conspiracies", r.PostForm.Get("community"))
		}
		_, _ = w.Write([]byte(`{"status":true}`))
	})
	params := url.Values{"community": {"conspiracies"}}

	assert.True(t, c.Request(context.Background(), http.MethodGet, NewPostsEndpoint, params, 0).Status)
	assert.True(t, c.Request(context.Background(), http.MethodPost, NewPostsEndpoint, params, 0).Status)
}

func TestFetchErrorKinds(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PostEndpoint:
			_, _ = w.Write([]byte(`{"status":false,"error":"post not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	_, err := c.Post(context.Background(), 7, false, 0)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUpstreamError))
	assert.Equal(t, "post not found", err.Error())

	_, err = c.NewPosts(context.Background(), "test", "", 0)
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeTransportFailure))
}

func TestTypedEndpointsDecode(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, NewPostsEndpoint, r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("from"))
		_, _ = w.Write([]byte(`{"status":true,"has_more_entries":true,"posts":[{"id":105,"uuid":"x","author":"a","community":"test","title":"hello"}]}`))
	})

	env, err := c.NewPosts(context.Background(), "test", "abc", 0)
	require.NoError(t, err)
	assert.True(t, env.HasMoreEntries)
	require.Len(t, env.Posts, 1)
	assert.Equal(t, uint64(105), env.Posts[0].ID)
	assert.Equal(t, "hello", env.Posts[0].Title)
}

func TestProbeModlogs(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == BanlogEndpoint {
			_, _ = w.Write([]byte(`{"status":true,"logs":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":false,"error":"forbidden"}`))
	})

	assert.False(t, c.ProbeModlogs(context.Background(), "test", false))
	assert.True(t, c.ProbeModlogs(context.Background(), "test", true))
}

func TestScrape(t *testing.T) {
	c, sleeps := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "post", r.URL.Query().Get("type"))
		_, _ = w.Write([]byte(`<html><body>
			<div class="post" data-id="12"><a class="title" href="https://example.com">First</a></div>
			<div class="post" data-id="11"><a class="title">Second</a></div>
		</body></html>`))
	})

	sel, ok := c.Scrape(context.Background(), c.opts.BaseURL+"/u/someone", url.Values{"type": {"post"}}, ".post")
	require.True(t, ok)
	assert.Equal(t, 2, sel.Length())
	id, _ := sel.First().Attr("data-id")
	assert.Equal(t, "12", id)
	assert.Equal(t, int32(1), atomic.LoadInt32(sleeps))
}

func TestScrapeTransportFailure(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {})
	_, ok := c.Scrape(context.Background(), "http://127.0.0.1:1/u/x", nil, ".post")
	assert.False(t, ok)
}
