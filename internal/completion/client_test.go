package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig(endpoint string) RequestConfig {
	cfg := DefaultRequestConfig()
	cfg.Endpoint = endpoint
	return cfg
}

func drain(t *testing.T, ch <-chan Chunk) (texts []string, terminal Chunk) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case chunk, ok := <-ch:
			if !ok {
				return texts, terminal
			}
			if chunk.Err != nil || chunk.Done {
				terminal = chunk
				continue
			}
			texts = append(texts, chunk.Text)
		case <-timeout:
			t.Fatal("timed out waiting for chunks")
		}
	}
}

func TestClient_Send_Blocking(t *testing.T) {
	var got map[string]any
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"text":" hello "}]}`)
	}))
	defer server.Close()

	cfg := testConfig(server.URL + "/v1/completions")
	cfg.APIKey = "sk-test"

	texts, terminal := drain(t, NewClient().Send(context.Background(), cfg, Request{
		Instruction: "Do it",
		Highlighted: "clip",
		FieldText:   "field",
	}))

	assertChunks(t, texts, []string{"hello"})
	if !terminal.Done || terminal.Err != nil {
		t.Errorf("terminal chunk = %+v, want Done", terminal)
	}
	if got["prompt"] != "Do it clip field" {
		t.Errorf("prompt = %q", got["prompt"])
	}
	if got["stream"] != false {
		t.Errorf("stream = %v, want false", got["stream"])
	}
	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestClient_Send_Legacy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Data []any `json:"data"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		instruction, _ := req.Data[0].(string)
		json.NewEncoder(w).Encode(map[string]any{"data": []string{instruction + "\n  world  "}})
	}))
	defer server.Close()

	cfg := testConfig(server.URL + "/run/textgen")
	cfg.API = APILegacy

	text, err := NewClient().Complete(context.Background(), cfg, Request{Instruction: "say hi\n### Response:"})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if text != "world" {
		t.Errorf("text = %q, want %q", text, "world")
	}
}

func TestClient_Send_ParseError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"unexpected":"shape"}`)
	}))
	defer server.Close()

	texts, terminal := drain(t, NewClient().Send(context.Background(), testConfig(server.URL), Request{}))
	if len(texts) != 0 {
		t.Errorf("expected no text chunks, got %q", texts)
	}
	var pe *ParseError
	if !errors.As(terminal.Err, &pe) {
		t.Fatalf("terminal error = %v, want *ParseError", terminal.Err)
	}
}

func fakeStreamingServer(events []string, tail string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		if req["stream"] != true {
			http.Error(w, "expected stream:true", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, ev := range events {
			data, _ := json.Marshal(map[string]any{"choices": []map[string]string{{"text": ev}}})
			fmt.Fprintf(w, "data: %s\n\n", data)
			w.(http.Flusher).Flush()
		}
		fmt.Fprint(w, tail)
	}))
}

func TestClient_Send_Streaming(t *testing.T) {
	server := fakeStreamingServer([]string{"Hel", "lo", " world"}, "data: [DONE]\n\n")
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Stream = true

	texts, terminal := drain(t, NewClient().Send(context.Background(), cfg, Request{Instruction: "x"}))
	assertChunks(t, texts, []string{"Hel", "lo", " world"})
	if !terminal.Done {
		t.Errorf("terminal chunk = %+v, want Done", terminal)
	}
}

func TestClient_Send_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, terminal := drain(t, NewClient().Send(context.Background(), testConfig(server.URL), Request{}))
	var te *TransportError
	if !errors.As(terminal.Err, &te) {
		t.Fatalf("terminal error = %v, want *TransportError", terminal.Err)
	}
	if te.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", te.StatusCode)
	}
	if !strings.Contains(te.Error(), "model not loaded") {
		t.Errorf("error should carry the body, got %q", te.Error())
	}
}

func TestClient_Send_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, terminal := drain(t, NewClient().Send(context.Background(), testConfig(server.URL), Request{}))
	if !errors.Is(terminal.Err, ErrRateLimit) {
		t.Errorf("terminal error = %v, want ErrRateLimit", terminal.Err)
	}
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, terminal := drain(t, NewClient().Send(context.Background(), testConfig(url), Request{}))
	var te *TransportError
	if !errors.As(terminal.Err, &te) {
		t.Fatalf("terminal error = %v, want *TransportError", terminal.Err)
	}
}

func TestClient_Send_InvalidEndpoint(t *testing.T) {
	texts, terminal := drain(t, NewClient().Send(context.Background(), testConfig("TEXT_GENERATION_HOSTNAME:PORT_NUMBER/v1/completions"), Request{}))
	if len(texts) != 0 {
		t.Errorf("expected no text, got %q", texts)
	}
	var ce *ConfigError
	if !errors.As(terminal.Err, &ce) {
		t.Fatalf("terminal error = %v, want *ConfigError", terminal.Err)
	}
}

func TestClient_Send_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	_, terminal := drain(t, client.Send(context.Background(), testConfig(server.URL), Request{}))

	var te *TransportError
	if !errors.As(terminal.Err, &te) {
		t.Fatalf("terminal error = %v, want *TransportError", terminal.Err)
	}
	if !errors.Is(terminal.Err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", terminal.Err)
	}
}

func TestClient_Send_Cancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"text\":\"first\"}]}\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer server.Close()

	cfg := testConfig(server.URL)
	cfg.Stream = true

	ctx, cancel := context.WithCancel(context.Background())
	ch := NewClient().Send(ctx, cfg, Request{})

	first := <-ch
	if first.Text != "first" {
		t.Fatalf("first chunk = %+v", first)
	}
	cancel()

	texts, terminal := drain(t, ch)
	if len(texts) != 0 {
		t.Errorf("no text expected after cancel, got %q", texts)
	}
	if terminal.Done {
		t.Error("cancelled stream must not report Done")
	}
}

func TestRetryableClient_RetriesBusyThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "empty body on retry", http.StatusBadRequest)
			return
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices":[{"text":"third time"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithRetry(RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}))
	text, err := client.Complete(context.Background(), testConfig(server.URL), Request{Instruction: "x"})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if text != "third time" {
		t.Errorf("text = %q", text)
	}
	if calls.Load() != 3 {
		t.Errorf("server saw %d calls, want 3", calls.Load())
	}
}

func TestRetryableClient_DefaultSendsOnce(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewClient().Complete(context.Background(), testConfig(server.URL), Request{})
	if !errors.Is(err, ErrServerBusy) {
		t.Errorf("expected ErrServerBusy, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("server saw %d calls, want 1", calls.Load())
	}
}

func TestShouldRetryStatus(t *testing.T) {
	for code, want := range map[int]bool{200: false, 400: false, 429: true, 500: false, 502: true, 503: true, 504: true} {
		if got := shouldRetryStatus(code); got != want {
			t.Errorf("shouldRetryStatus(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
		ok     bool
	}{
		{"", 0, false},
		{"2", 2 * time.Second, true},
		{"0", 0, true},
		{"-1", 0, false},
		{"Wed, 21 Oct 2015 07:28:00 GMT", 0, false},
	}
	for _, tt := range tests {
		got, ok := retryAfter(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("retryAfter(%q) = %v, %v; want %v, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestRetryableClient_RetryAfterCappedByMaxDelay(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "3600")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"choices":[{"text":"ok"}]}`)
	}))
	defer server.Close()

	client := NewClient(WithRetry(RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}))
	start := time.Now()
	text, err := client.Complete(context.Background(), testConfig(server.URL), Request{Instruction: "x"})
	if err != nil {
		t.Fatalf("Complete() failed: %v", err)
	}
	if text != "ok" {
		t.Errorf("text = %q", text)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Retry-After was not capped, took %v", elapsed)
	}
}
