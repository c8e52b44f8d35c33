package completion

import (
	"errors"
	"fmt"
)

// Retryable upstream conditions
var (
	ErrRateLimit      = errors.New("rate limit exceeded (429)")
	ErrServerBusy     = errors.New("server busy (503)")
	ErrBadGateway     = errors.New("bad gateway (502)")
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// ErrShapeMismatch means a body decoded as JSON but carried neither
// choices[0].text nor data[0].
var ErrShapeMismatch = errors.New("response matches no known shape")

// ConfigError reports a request configuration that can never succeed.
// It is raised before anything is sent.
type ConfigError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// TransportError wraps network failures and non-2xx responses.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ParseError is returned when a blocking response body cannot be read
// as either supported shape.
type ParseError struct {
	Body string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse response: %v (body: %s)", e.Err, e.Body)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StreamDecodeError describes one event line that failed to decode.
// The stream skips the line and continues.
type StreamDecodeError struct {
	Line string
	Err  error
}

func (e *StreamDecodeError) Error() string {
	return fmt.Sprintf("decode event %q: %v", e.Line, e.Err)
}

func (e *StreamDecodeError) Unwrap() error { return e.Err }

// excerpt shortens a body for inclusion in an error message.
func excerpt(b []byte) string {
	const limit = 256
	if len(b) <= limit {
		return string(b)
	}
	return string(b[:limit]) + "..."
}
