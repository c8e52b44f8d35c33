package completion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig sends each request once. A keyboard action should not
// silently repeat itself; retries are opt-in through config.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 1,
		BaseDelay:   time.Second,
		MaxDelay:    10 * time.Second,
	}
}

// RetryableClient wraps http.Client with retry logic
type RetryableClient struct {
	client *http.Client
	config RetryConfig
	log    logrus.FieldLogger
}

// NewRetryableClient creates a client with retry support. There is no
// overall client timeout: streams may run long, so deadlines come from
// the request context.
func NewRetryableClient(config RetryConfig) *RetryableClient {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	return &RetryableClient{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       90 * time.Second,
				MaxIdleConns:          10,
				MaxIdleConnsPerHost:   5,
			},
		},
		config: config,
		log:    logrus.StandardLogger(),
	}
}

// DoWithRetry executes a request with retry logic for transient errors.
// A Retry-After header on 429 or 503 replaces the backoff delay, capped at
// MaxDelay.
func (c *RetryableClient) DoWithRetry(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	backoff := c.config.BaseDelay

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		last := attempt == c.config.MaxAttempts

		reqClone := req.Clone(ctx)
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			reqClone.Body = body
		}

		wait := backoff
		resp, err := c.client.Do(reqClone)
		switch {
		case err != nil:
			if !isRetryableError(err) {
				return nil, err
			}
			lastErr = err
		case shouldRetryStatus(resp.StatusCode) && !last:
			if d, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				wait = min(d, c.config.MaxDelay)
			}
			resp.Body.Close()
			lastErr = statusError(resp.StatusCode)
		default:
			// The final attempt hands back the response so the caller sees the body.
			return resp, nil
		}

		if last {
			break
		}
		c.log.WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait,
			"url":     req.URL.Redacted(),
		}).WithError(lastErr).Warn("completion request failed, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
			backoff = min(backoff*2, c.config.MaxDelay)
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", c.config.MaxAttempts, lastErr)
}

// retryAfter parses the delay-seconds form of Retry-After.
func retryAfter(v string) (time.Duration, bool) {
	if v == "" {
		return 0, false
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// isRetryableError checks if a network error is worth retrying
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// shouldRetryStatus checks if an HTTP status code warrants a retry
func shouldRetryStatus(code int) bool {
	switch code {
	case 429, 502, 503, 504:
		return true
	default:
		return false
	}
}

// statusError returns a descriptive error for HTTP status
func statusError(code int) error {
	switch code {
	case 429:
		return ErrRateLimit
	case 502:
		return ErrBadGateway
	case 503:
		return ErrServerBusy
	case 504:
		return ErrGatewayTimeout
	default:
		return fmt.Errorf("HTTP %d", code)
	}
}

// NewRequestWithBody creates a new HTTP request with the given body bytes
// The body is stored so it can be re-read on retry
func NewRequestWithBody(ctx context.Context, method, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, err
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(body))
	return req, nil
}
