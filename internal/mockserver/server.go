// Package mockserver is a fake completion endpoint speaking both the
// OpenAI completions shape and the legacy text-generation shape.
package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"allora/internal/prompt"
)

const DefaultText = "Hello from allora-mock."

type Options struct {
	Addr string
	// Text is the completion returned to every request.
	Text string
	// Chunks overrides how Text is split into stream events.
	Chunks []string
	// Delay is slept before each stream event and before blocking replies.
	Delay time.Duration
	// FailFirst answers the first N completion requests with 503.
	FailFirst int
}

type Server struct {
	opts   Options
	router *gin.Engine
	log    logrus.FieldLogger
	calls  atomic.Int64
}

func New(opts Options, logger logrus.FieldLogger) *Server {
	if opts.Text == "" && len(opts.Chunks) == 0 {
		opts.Text = DefaultText
	}
	if len(opts.Chunks) == 0 {
		opts.Chunks = splitWords(opts.Text)
	} else if opts.Text == "" {
		opts.Text = strings.Join(opts.Chunks, "")
	}
	if logger == nil {
		logger = logrus.New()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	s := &Server{opts: opts, router: router, log: logger}
	router.Use(gin.Recovery(), s.ginLogger())
	router.GET("/healthz", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.POST("/v1/completions", s.handleCompletions)
	router.POST("/run/textgen", s.handleTextgen)
	return s
}

// Handler exposes the router, for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// Calls returns how many completion requests were received.
func (s *Server) Calls() int64 { return s.calls.Load() }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.WithField("addr", s.opts.Addr).Info("mock completion server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type completionRequest struct {
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens"`
	Temperature *float64 `json:"temperature"`
	Stream      bool     `json:"stream"`
	Stop        string   `json:"stop"`
}

type completionChoice struct {
	Text         string  `json:"text"`
	Index        int     `json:"index"`
	FinishReason *string `json:"finish_reason"`
}

type completionResponse struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []completionChoice `json:"choices"`
}

func (s *Server) handleCompletions(c *gin.Context) {
	if s.failing() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model is loading"})
		return
	}

	var req completionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if req.Prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}

	chunks, reason := s.limit(req.MaxTokens)
	resp := completionResponse{
		ID:      "cmpl-" + uuid.NewString(),
		Object:  "text_completion",
		Created: time.Now().Unix(),
		Model:   "allora-mock",
	}

	if !req.Stream {
		if !s.sleep(c.Request.Context()) {
			return
		}
		resp.Choices = []completionChoice{{Text: strings.Join(chunks, ""), FinishReason: &reason}}
		c.JSON(http.StatusOK, resp)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)

	i := 0
	c.Stream(func(w io.Writer) bool {
		if !s.sleep(c.Request.Context()) {
			return false
		}
		if i < len(chunks) {
			resp.Choices = []completionChoice{{Text: chunks[i]}}
			i++
		} else {
			resp.Choices = []completionChoice{{Text: "", FinishReason: &reason}}
			i++
		}
		data, _ := json.Marshal(resp)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if i > len(chunks) {
			fmt.Fprint(w, "data: [DONE]\n\n")
			return false
		}
		return true
	})
}

type textgenRequest struct {
	Data []any `json:"data"`
}

func (s *Server) handleTextgen(c *gin.Context) {
	if s.failing() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "model is loading"})
		return
	}

	var req textgenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	instruction, ok := firstString(req.Data)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "data[0] must be the prompt string"})
		return
	}
	if !s.sleep(c.Request.Context()) {
		return
	}

	// The legacy endpoint echoes the prompt before the generated text.
	out := instruction
	if !strings.Contains(out, prompt.ResponseMarker) {
		out += "\n" + prompt.ResponseMarker
	}
	out += "\n" + s.opts.Text
	c.JSON(http.StatusOK, gin.H{"data": []string{out}, "duration": s.opts.Delay.Seconds()})
}

func (s *Server) failing() bool {
	n := s.calls.Add(1)
	return n <= int64(s.opts.FailFirst)
}

// limit treats each chunk as one token.
func (s *Server) limit(maxTokens int) ([]string, string) {
	if maxTokens > 0 && maxTokens < len(s.opts.Chunks) {
		return s.opts.Chunks[:maxTokens], "length"
	}
	return s.opts.Chunks, "stop"
}

func (s *Server) sleep(ctx context.Context) bool {
	if s.opts.Delay <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(s.opts.Delay):
		return true
	}
}

func (s *Server) ginLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request")
	}
}

func firstString(data []any) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	s, ok := data[0].(string)
	return s, ok
}

// splitWords keeps the leading space with each word, the way token
// streams usually arrive.
func splitWords(text string) []string {
	var out []string
	start := 0
	for i := 1; i < len(text); i++ {
		if text[i] == ' ' && text[i-1] != ' ' {
			out = append(out, text[start:i])
			start = i
		}
	}
	if start < len(text) {
		out = append(out, text[start:])
	}
	return out
}
