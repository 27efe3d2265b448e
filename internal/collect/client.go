package collect

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	logx "macromon/pkg/logx"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultRetryMax   = 3
	defaultRetryBase  = 300 * time.Millisecond
	defaultRatePerSec = 4

	userAgent = "macromon/1.0"

	// maxBodyBytes caps response reads; none of the feeds we poll come
	// close to this.
	maxBodyBytes = 8 << 20
)

// Client is a shared HTTP client for all collectors: one rate limiter
// across every upstream call, retry with exponential backoff on
// transient server errors, and a hard per-request timeout.
type Client struct {
	http      *http.Client
	limiter   *rate.Limiter
	retryMax  int
	retryBase time.Duration
	log       logx.Logger
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithRetry(max int, base time.Duration) ClientOption {
	return func(c *Client) {
		if max >= 0 {
			c.retryMax = max
		}
		if base > 0 {
			c.retryBase = base
		}
	}
}

func WithRatePerSec(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

func WithLogger(log logx.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:      &http.Client{Timeout: defaultTimeout},
		limiter:   rate.NewLimiter(rate.Limit(defaultRatePerSec), defaultRatePerSec),
		retryMax:  defaultRetryMax,
		retryBase: defaultRetryBase,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// retryableStatus matches the transient upstream failures worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Do executes the request with rate limiting and retries, returning the
// response body. The request must be buildable repeatedly, so callers
// pass a factory instead of a single *http.Request.
func (c *Client) Do(ctx context.Context, build func(ctx context.Context) (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryMax; attempt++ {
		if attempt > 0 {
			wait := c.retryBase << (attempt - 1)
			c.log.Debug("retrying request", logx.Int("attempt", attempt), logx.Duration("backoff", wait))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := build(ctx)
		if err != nil {
			return nil, err
		}
		if req.Header.Get("User-Agent") == "" {
			req.Header.Set("User-Agent", userAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, rerr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			if rerr != nil {
				lastErr = rerr
				continue
			}
			return body, nil
		}
		lastErr = fmt.Errorf("%s: unexpected status %d", req.URL.Host, resp.StatusCode)
		if !retryableStatus(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retryMax+1, lastErr)
}

// Get fetches a URL and leaves decoding to the caller.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	return c.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	})
}
