package completion

import (
	"encoding/json"
	"fmt"
	"strings"

	"allora/internal/prompt"
)

type openAIResponse struct {
	Choices []struct {
		Text *string `json:"text"`
	} `json:"choices"`
}

type legacyResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ParseResponse extracts the completion from a blocking response body.
// Both shapes are accepted: {"choices":[{"text":...}]} and {"data":[...]}.
// A body matching neither yields a *ParseError.
func ParseResponse(body []byte) (string, error) {
	if text, ok := parseOpenAI(body); ok {
		return text, nil
	}
	if text, ok := parseLegacy(body); ok {
		return text, nil
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(body, &probe); err != nil {
		return "", &ParseError{Body: excerpt(body), Err: err}
	}
	return "", &ParseError{Body: excerpt(body), Err: ErrShapeMismatch}
}

func parseOpenAI(body []byte) (string, bool) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", false
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Text == nil {
		return "", false
	}
	return strings.TrimSpace(*resp.Choices[0].Text), true
}

func parseLegacy(body []byte) (string, bool) {
	var resp legacyResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Data) == 0 {
		return "", false
	}
	var reply string
	if err := json.Unmarshal(resp.Data[0], &reply); err != nil {
		return "", false
	}
	return stripEcho(reply), true
}

// stripEcho drops everything up to and including the response marker.
func stripEcho(reply string) string {
	if i := strings.Index(reply, prompt.ResponseMarker); i >= 0 {
		reply = reply[i+len(prompt.ResponseMarker):]
	}
	return strings.TrimSpace(reply)
}

// legacyParams are the fixed generation knobs of the gradio textgen API,
// in positional order after the prompt: max_new_tokens, do_sample,
// temperature, top_p, typical_p, repetition_penalty,
// encoder_repetition_penalty, top_k, min_length, no_repeat_ngram_size,
// num_beams, penalty_alpha, length_penalty, early_stopping, seed.
var legacyParams = []any{200, true, 0.72, 0.73, 1, 1.1, 1.0, 0, 0, 0, 1, 0, 1, false, -1}

type legacyRequest struct {
	Data []any `json:"data"`
}

type openAIRequest struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	N           int     `json:"n"`
	Stream      bool    `json:"stream"`
	Stop        string  `json:"stop,omitempty"`
}

// buildBody encodes the request for cfg's API shape.
func buildBody(cfg RequestConfig, req Request) ([]byte, error) {
	var v any
	switch cfg.API {
	case APILegacy:
		v = legacyRequest{Data: append([]any{req.Instruction}, legacyParams...)}
	default:
		v = openAIRequest{
			Model:       cfg.Model,
			Prompt:      req.Prompt(),
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			TopP:        cfg.TopP,
			N:           1,
			Stream:      cfg.Stream,
			Stop:        cfg.Stop,
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	return data, nil
}
