// Package completion talks to OpenAI-completions and legacy text-generation-webui
// endpoints and turns their responses into a stream of Chunks.
package completion

import (
	"errors"
	"fmt"
	"net/url"
)

// API selects the request and response shape of an endpoint.
type API string

const (
	APIOpenAI API = "openai"
	APILegacy API = "legacy"
)

// Token limits offered by the keyboard's slider.
const (
	MinMaxTokens = 1
	MaxMaxTokens = 500
)

// Chunk represents a piece of completion text. The last chunk on a
// channel has Done or Err set.
type Chunk struct {
	Text string
	Done bool
	Err  error
}

// Request carries the three text parts of one completion call.
type Request struct {
	Instruction string
	Highlighted string // clipboard text
	FieldText   string // text before the cursor
}

// Prompt is the text sent to OpenAI-shaped endpoints.
func (r Request) Prompt() string {
	return r.Instruction + " " + r.Highlighted + " " + r.FieldText
}

// RequestConfig holds the endpoint and sampling knobs for one request.
type RequestConfig struct {
	Endpoint    string
	API         API
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stream      bool
	Stop        string
}

// DefaultRequestConfig mirrors the values the keyboard shipped with.
func DefaultRequestConfig() RequestConfig {
	return RequestConfig{
		Endpoint:    "http://localhost:5000/v1/completions",
		API:         APIOpenAI,
		MaxTokens:   100,
		Temperature: 0.7,
		TopP:        0.9,
		Stop:        "#",
	}
}

// Validate returns a *ConfigError for settings no request could succeed with.
func (c RequestConfig) Validate() error {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return &ConfigError{Field: "endpoint", Value: c.Endpoint, Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ConfigError{Field: "endpoint", Value: c.Endpoint, Err: errors.New("scheme must be http or https")}
	}
	if u.Host == "" {
		return &ConfigError{Field: "endpoint", Value: c.Endpoint, Err: errors.New("missing host")}
	}

	switch c.API {
	case APIOpenAI, APILegacy:
	default:
		return &ConfigError{Field: "api", Value: string(c.API), Err: errors.New("must be openai or legacy")}
	}

	if c.MaxTokens < MinMaxTokens || c.MaxTokens > MaxMaxTokens {
		return &ConfigError{
			Field: "max_tokens",
			Value: fmt.Sprint(c.MaxTokens),
			Err:   fmt.Errorf("must be within [%d, %d]", MinMaxTokens, MaxMaxTokens),
		}
	}

	if c.Stream && c.API == APILegacy {
		return &ConfigError{Field: "stream", Err: errors.New("legacy endpoints do not stream")}
	}
	return nil
}
