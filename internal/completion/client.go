package completion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Client sends completion requests. It holds transport state only; the
// endpoint and sampling knobs travel with each call.
type Client struct {
	http    *RetryableClient
	timeout time.Duration
	log     logrus.FieldLogger
}

// Option configures a Client.
type Option func(*Client)

// WithRetry replaces the default single-attempt transport.
func WithRetry(rc RetryConfig) Option {
	return func(c *Client) { c.http = NewRetryableClient(rc) }
}

// WithTimeout bounds a whole request, streaming included. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(opts ...Option) *Client {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	c := &Client{
		http:    NewRetryableClient(DefaultRetryConfig()),
		timeout: 120 * time.Second,
		log:     discard,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.log = c.log
	return c
}

// Send issues one request and returns its chunks. The channel carries the
// completion text (one chunk when blocking, one per event when streaming)
// followed by a terminal chunk with Done or Err, and is then closed.
// Cancelling ctx aborts the request; the channel may close without a
// terminal chunk in that case.
func (c *Client) Send(ctx context.Context, cfg RequestConfig, req Request) <-chan Chunk {
	ch := make(chan Chunk, 16)

	go func() {
		defer close(ch)

		emit := func(chunk Chunk) bool {
			select {
			case ch <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if err := cfg.Validate(); err != nil {
			emit(Chunk{Err: err})
			return
		}

		reqCtx := ctx
		if c.timeout > 0 {
			var cancel context.CancelFunc
			reqCtx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		log := c.log.WithFields(logrus.Fields{
			"endpoint": cfg.Endpoint,
			"api":      cfg.API,
			"stream":   cfg.Stream,
		})
		start := time.Now()

		resp, err := c.post(reqCtx, cfg, req)
		if err != nil {
			log.WithError(err).Warn("completion request failed")
			emit(Chunk{Err: err})
			return
		}
		defer resp.Body.Close()

		if cfg.Stream {
			var n int
			err = ReadEvents(reqCtx, resp.Body, func(text string) error {
				n++
				if !emit(Chunk{Text: text}) {
					return ctx.Err()
				}
				return nil
			}, func(err error) {
				log.WithError(err).Debug("skipping stream line")
			})
			if err != nil {
				if !isTransportError(err) {
					err = &TransportError{Op: "read stream", Err: err}
				}
				log.WithError(err).WithField("events", n).Warn("stream aborted")
				emit(Chunk{Err: err})
				return
			}
			log.WithFields(logrus.Fields{"events": n, "elapsed": time.Since(start)}).Debug("stream complete")
			emit(Chunk{Done: true})
			return
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			emit(Chunk{Err: &TransportError{Op: "read body", Err: err}})
			return
		}
		text, err := ParseResponse(body)
		if err != nil {
			log.WithError(err).Warn("unparseable completion response")
			emit(Chunk{Err: err})
			return
		}
		log.WithField("elapsed", time.Since(start)).Debug("completion received")
		if emit(Chunk{Text: text}) {
			emit(Chunk{Done: true})
		}
	}()

	return ch
}

// Complete drains Send and returns the concatenated completion text.
func (c *Client) Complete(ctx context.Context, cfg RequestConfig, req Request) (string, error) {
	var sb strings.Builder
	for chunk := range c.Send(ctx, cfg, req) {
		if chunk.Err != nil {
			return sb.String(), chunk.Err
		}
		sb.WriteString(chunk.Text)
	}
	if err := ctx.Err(); err != nil {
		return sb.String(), err
	}
	return sb.String(), nil
}

func (c *Client) post(ctx context.Context, cfg RequestConfig, req Request) (*http.Response, error) {
	body, err := buildBody(cfg, req)
	if err != nil {
		return nil, err
	}

	httpReq, err := NewRequestWithBody(ctx, http.MethodPost, cfg.Endpoint, body)
	if err != nil {
		return nil, &ConfigError{Field: "endpoint", Value: cfg.Endpoint, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if cfg.Stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}
	if cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.http.DoWithRetry(ctx, httpReq)
	if err != nil {
		return nil, &TransportError{Op: "post", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cause := errors.New(strings.TrimSpace(excerpt(data)))
		if shouldRetryStatus(resp.StatusCode) {
			cause = fmt.Errorf("%w: %s", statusError(resp.StatusCode), strings.TrimSpace(excerpt(data)))
		}
		return nil, &TransportError{Op: "post", StatusCode: resp.StatusCode, Err: cause}
	}
	return resp, nil
}

func isTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
