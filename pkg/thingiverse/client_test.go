package thingiverse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string, attempts int) *Client {
	return NewClient(Options{
		BaseURL:  baseURL,
		Token:    "test-token",
		Pacing:   time.Millisecond,
		Timeout:  time.Second,
		Attempts: attempts,
	}, zap.NewNop())
}

func TestFetchSuccess(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.Equal(t, "/things/42/images", r.URL.Path)
		w.Write([]byte(`[{"id": 1}]`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL+"/things/", 3)
	res := c.Fetch(context.Background(), 42, SuffixImages)

	require.Equal(t, Success, res.Outcome)
	require.JSONEq(t, `[{"id": 1}]`, string(res.Body))
	require.Equal(t, "Bearer test-token", gotAuth)
}

func TestFetchNotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL+"/things/", 3)
	res := c.Fetch(context.Background(), 42, SuffixThing)

	require.Equal(t, NotFound, res.Outcome)
	require.EqualValues(t, 1, calls.Load(), "not found must not be retried")
}

func TestFetchForbiddenIsTerminal(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		var calls atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(status)
		}))

		c := newTestClient(ts.URL+"/things/", 3)
		res := c.Fetch(context.Background(), 42, SuffixThing)
		ts.Close()

		require.Equal(t, Forbidden, res.Outcome, "status %d", status)
		require.EqualValues(t, 1, calls.Load(), "status %d must not be retried", status)
	}
}

func TestFetchTransientExhaustsRetryBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL+"/things/", 3)
	res := c.Fetch(context.Background(), 42, SuffixThing)

	require.Equal(t, Empty, res.Outcome)
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchRecoversWithinBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": 42}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL+"/things/", 3)
	res := c.Fetch(context.Background(), 42, SuffixThing)

	require.Equal(t, Success, res.Outcome)
	require.EqualValues(t, 3, calls.Load())
}

func TestFetchInvalidJSONIsTransient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL+"/things/", 2)
	res := c.Fetch(context.Background(), 42, SuffixThing)

	require.Equal(t, Empty, res.Outcome)
}

func TestFetchHonorsCancellation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(Options{
		BaseURL:  ts.URL + "/things/",
		Pacing:   time.Hour,
		Attempts: 3,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	res := c.Fetch(ctx, 42, SuffixThing)
	require.Equal(t, Empty, res.Outcome)
	require.Less(t, time.Since(start), time.Second, "pacing must not block once the context is done")
}

func TestURL(t *testing.T) {
	c := newTestClient("https://api.example.com/things/", 3)
	require.Equal(t, "https://api.example.com/things/42", c.URL(42, SuffixThing))
	require.Equal(t, "https://api.example.com/things/42/files", c.URL(42, SuffixFiles))
	require.Equal(t, "https://api.example.com/things/42/likes", c.URL(42, SuffixLikes))
	require.Equal(t, "https://api.example.com/things/42/categories", c.URL(42, SuffixCategories))
}
