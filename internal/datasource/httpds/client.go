// Package httpds implements the HTTP data source used to pull
// provider extracts straight from their published URLs. Transient
// failures are retried with exponential backoff; context cancellation
// is honored during both requests and backoff waits.
package httpds

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the HTTP source. Zero values get defaults:
// Timeout 30s, MaxRetries 3, InitialBackoff 200ms, MaxBackoff 5s.
type Config struct {
	Timeout        time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Transport optionally overrides the RoundTripper (tests inject a
	// stub here).
	Transport http.RoundTripper
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	} else if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 200 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 5 * time.Second
	}
	return c
}

// Remote is an HTTP data source bound to one URL.
type Remote struct {
	url    string
	cfg    Config
	client *http.Client

	// sleep is a test seam; production uses a timer honoring ctx.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRemote returns a Remote source for the given URL.
func NewRemote(url string, cfg Config) *Remote {
	cfg = cfg.withDefaults()
	return &Remote{
		url: url,
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: cfg.Transport,
		},
		sleep: sleepCtx,
	}
}

// Name returns the bound URL.
func (r *Remote) Name() string { return r.url }

// Open issues a GET, retrying on transport errors and retryable status
// codes (429 and 5xx). The response body is returned for streaming; a
// non-200 final status is an error.
func (r *Remote) Open(ctx context.Context) (io.ReadCloser, error) {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := r.sleep(ctx, backoff); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > r.cfg.MaxBackoff {
				backoff = r.cfg.MaxBackoff
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
		if err != nil {
			return nil, fmt.Errorf("build request %s: %w", r.url, err)
		}
		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp.Body, nil
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		lastErr = fmt.Errorf("GET %s: %s", r.url, resp.Status)
		if !retryable(resp.StatusCode) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("GET %s: retries exhausted: %w", r.url, lastErr)
}

// retryable reports whether a status code is worth another attempt.
func retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
