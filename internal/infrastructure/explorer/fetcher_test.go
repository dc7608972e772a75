package explorer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcvault/por/internal/infrastructure/explorer"
	"github.com/stretchr/testify/require"
)

func newFetcher(t *testing.T, url string, mutate ...func(*explorer.Config)) *explorer.Fetcher {
	cfg := explorer.Config{
		BaseURL:       url,
		Timeout:       time.Second,
		MaxRetries:    2,
		RetryInterval: time.Millisecond,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	fetcher, err := explorer.NewFetcher(cfg)
	require.NoError(t, err)
	return fetcher
}

// statusSequence replies with the given status codes in order, then 200.
func statusSequence(hits *int32, codes ...int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := int(atomic.AddInt32(hits, 1))
		if n <= len(codes) {
			w.WriteHeader(codes[n-1])
			_, _ = w.Write([]byte("nope"))
			return
		}
		_, _ = w.Write([]byte("ok " + r.URL.Path))
	}
}

func TestFetcherGet(t *testing.T) {
	fixtures := []struct {
		description  string
		codes        []int
		expectedErr  bool
		expectedHits int32
	}{
		{"first attempt succeeds", nil, false, 1},
		{"server errors are retried", []int{500, 502}, false, 3},
		{"rate limited responses are retried", []int{429}, false, 2},
		{"retries are bounded", []int{503, 503, 503, 503}, true, 3},
		{"client errors are permanent", []int{400}, true, 1},
		{"not found is permanent", []int{404}, true, 1},
	}

	for _, f := range fixtures {
		t.Run(f.description, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(statusSequence(&hits, f.codes...))
			defer server.Close()

			body, err := newFetcher(t, server.URL+"/api").Get(context.Background(), "tx", "abcd")
			require.Equal(t, f.expectedHits, atomic.LoadInt32(&hits))
			if f.expectedErr {
				require.Error(t, err)
				require.Nil(t, body)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "ok /api/tx/abcd", string(body))
		})
	}
}

func TestFetcherNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newFetcher(t, server.URL).Get(context.Background(), "tx", "abcd")
	require.ErrorIs(t, err, explorer.ErrNotFound)
}

func TestFetcherTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	fetcher := newFetcher(t, server.URL, func(cfg *explorer.Config) {
		cfg.Timeout = 20 * time.Millisecond
		cfg.MaxRetries = 0
	})

	start := time.Now()
	_, err := fetcher.Get(context.Background(), "blocks", "tip", "height")
	require.Error(t, err)
	require.Less(t, time.Since(start), 500*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = newFetcher(t, server.URL).Get(ctx, "blocks", "tip", "height")
	require.ErrorIs(t, err, context.Canceled)
}

func TestFetcherRateLimit(t *testing.T) {
	var hits int32
	server := httptest.NewServer(statusSequence(&hits))
	defer server.Close()

	fetcher := newFetcher(t, server.URL, func(cfg *explorer.Config) {
		cfg.RateLimit = 20
	})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := fetcher.Get(context.Background(), "latestblock")
		require.NoError(t, err)
	}
	require.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	require.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestNewFetcher(t *testing.T) {
	for _, url := range []string{"", "blockstream.info/api", "ftp://example.com", "://bad"} {
		_, err := explorer.NewFetcher(explorer.Config{BaseURL: url})
		require.Error(t, err, url)
	}

	fetcher, err := explorer.NewFetcher(explorer.Config{BaseURL: "https://blockstream.info/api"})
	require.NoError(t, err)
	require.Equal(t, "https://blockstream.info/api", fetcher.BaseURL())
}
