package explorer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxBodySize = 4 << 20

var ErrNotFound = errors.New("resource not found")

var (
	defaultTimeout       = 15 * time.Second
	defaultRetryInterval = 500 * time.Millisecond
)

type Config struct {
	BaseURL string
	// Timeout bounds every single HTTP round trip.
	Timeout time.Duration
	// RateLimit is the max number of requests per second, <= 0 disables it.
	RateLimit  float64
	MaxRetries uint64
	// RetryInterval is the first delay of the exponential backoff.
	RetryInterval time.Duration
}

type errUnexpectedStatus struct {
	code int
	body string
}

func (e errUnexpectedStatus) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.code, e.body)
}

func (e errUnexpectedStatus) retryable() bool {
	return e.code == http.StatusTooManyRequests || e.code >= http.StatusInternalServerError
}

// Fetcher issues rate limited GET requests against a REST explorer,
// retrying transient failures with exponential backoff.
type Fetcher struct {
	baseURL       string
	client        *http.Client
	limiter       *rate.Limiter
	maxRetries    uint64
	retryInterval time.Duration
}

func NewFetcher(cfg Config) (*Fetcher, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid explorer url: %s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid explorer url scheme %q", u.Scheme)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retryInterval := cfg.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Fetcher{
		baseURL:       u.String(),
		client:        &http.Client{Timeout: timeout},
		limiter:       limiter,
		maxRetries:    cfg.MaxRetries,
		retryInterval: retryInterval,
	}, nil
}

func (f *Fetcher) BaseURL() string {
	return f.baseURL
}

// Get returns the body of a successful response for the resource at the
// given path. A 404 is reported as ErrNotFound and is never retried.
func (f *Fetcher) Get(ctx context.Context, path ...string) ([]byte, error) {
	endpoint, err := url.JoinPath(f.baseURL, path...)
	if err != nil {
		return nil, err
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = f.retryInterval
	policy := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, f.maxRetries), ctx,
	)

	return backoff.RetryNotifyWithData(func() ([]byte, error) {
		return f.get(ctx, endpoint)
	}, policy, func(err error, next time.Duration) {
		log.WithError(err).Debugf("GET %s failed, retrying in %s", endpoint, next)
	})
}

func (f *Fetcher) get(ctx context.Context, endpoint string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", ErrNotFound, endpoint))
	default:
		statusErr := errUnexpectedStatus{resp.StatusCode, string(body)}
		if statusErr.retryable() {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}
}
