// Package session runs one completion request at a time against a text
// buffer: it builds the prompt, starts the request and splices chunks
// back in as they arrive.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"allora/internal/clipboard"
	"allora/internal/completion"
	"allora/internal/config"
	"allora/internal/history"
	"allora/internal/logging"
	"allora/internal/prompt"
	"allora/internal/splice"
)

var (
	ErrBusy   = errors.New("a completion request is already in flight")
	ErrClosed = errors.New("session closed")
)

// Completer issues completion requests. *completion.Client implements it.
type Completer interface {
	Send(ctx context.Context, cfg completion.RequestConfig, req completion.Request) <-chan completion.Chunk
}

// Recorder stores request outcomes. *history.Store implements it.
type Recorder interface {
	Begin(rec history.Record) (uuid.UUID, error)
	Finish(id uuid.UUID, status history.Status, completion, errMsg string) error
}

// Session owns the buffer for the lifetime of an editing session. Start,
// Handle and Close must run on the goroutine that owns the buffer.
type Session struct {
	client Completer
	clip   clipboard.Reader
	buf    splice.Buffer
	log    logrus.FieldLogger
	rec    Recorder

	mu          sync.Mutex
	cfg         completion.RequestConfig
	placeholder string
	replace     string
	active      *Request
	closed      bool
}

type Option func(*Session)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.log = l }
}

// WithHistory records every request. A nil Recorder disables recording.
func WithHistory(r Recorder) Option {
	return func(s *Session) { s.rec = r }
}

// WithConfig takes request knobs, placeholder and replace policy from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Session) {
		s.cfg = cfg.RequestConfig()
		s.placeholder = cfg.Keyboard.Placeholder
		s.replace = cfg.Keyboard.Replace
	}
}

func WithRequestConfig(cfg completion.RequestConfig) Option {
	return func(s *Session) { s.cfg = cfg }
}

func WithPlaceholder(p string) Option {
	return func(s *Session) { s.placeholder = p }
}

// WithReplacePolicy sets auto, always or never.
func WithReplacePolicy(policy string) Option {
	return func(s *Session) { s.replace = policy }
}

func New(client Completer, clip clipboard.Reader, buf splice.Buffer, opts ...Option) *Session {
	s := &Session{
		client:      client,
		clip:        clip,
		buf:         buf,
		log:         logging.Discard(),
		cfg:         completion.DefaultRequestConfig(),
		placeholder: splice.DefaultPlaceholder,
		replace:     config.ReplaceAuto,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the knobs the next request will use.
func (s *Session) Config() completion.RequestConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetConfig changes the knobs for subsequent requests. A request already
// in flight keeps the ones it started with.
func (s *Session) SetConfig(cfg completion.RequestConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

func (s *Session) ReplacePolicy() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replace
}

func (s *Session) SetReplacePolicy(policy string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace = policy
}

// Active returns the in-flight request, or nil.
func (s *Session) Active() *Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Start reads the field text and clipboard, shows the placeholder and
// sends the request. Drain Events and pass each chunk to Handle.
func (s *Session) Start(ctx context.Context, mode prompt.Mode) (*Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}
	if s.active != nil {
		return nil, ErrBusy
	}

	cfg := s.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Read before the placeholder goes in.
	field, _ := s.buf.DocumentContextBeforeInput()
	clip := clipboard.Text(s.clip)
	req := completion.Request{
		Instruction: prompt.Build(mode, field, clip),
		Highlighted: clip,
		FieldText:   field,
	}

	ctx, cancel := context.WithCancel(ctx)
	r := &Request{
		ID:      uuid.New(),
		Mode:    mode,
		session: s,
		splicer: splice.New(s.buf, s.placeholder, config.ReplaceAllFor(s.replace, mode)),
		cancel:  cancel,
		started: time.Now(),
	}
	r.log = s.log.WithFields(logrus.Fields{
		"request_id": r.ID.String(),
		"mode":       mode.String(),
	})

	if s.rec != nil {
		sent := req.Prompt()
		if cfg.API == completion.APILegacy {
			sent = req.Instruction
		}
		if _, err := s.rec.Begin(history.Record{
			ID:        r.ID,
			Mode:      mode.String(),
			Endpoint:  cfg.Endpoint,
			Prompt:    sent,
			CreatedAt: r.started,
		}); err != nil {
			r.log.WithError(err).Warn("history begin failed")
		}
	}

	r.splicer.Begin()
	r.events = s.client.Send(ctx, cfg, req)
	s.active = r

	r.log.WithFields(logrus.Fields{
		"endpoint": cfg.Endpoint,
		"stream":   cfg.Stream,
		"replace":  r.splicer.State().ReplaceAll,
	}).Info("request started")
	return r, nil
}

// Run starts a request and drives it to completion on the calling
// goroutine. It returns the completion text.
func (s *Session) Run(ctx context.Context, mode prompt.Mode) (string, error) {
	r, err := s.Start(ctx, mode)
	if err != nil {
		return "", err
	}
	for chunk := range r.Events() {
		if done, err := r.Handle(chunk); done {
			return r.Text(), err
		}
	}
	return r.Text(), r.HandleClosed()
}

// Close ends the editing session. An in-flight request is cancelled and
// the buffer is never touched again.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	r := s.active
	s.mu.Unlock()

	if r != nil {
		r.splicer.Detach()
		r.Cancel()
		r.fail(context.Canceled)
	}
}

func (s *Session) release(r *Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == r {
		s.active = nil
	}
}

// Request is one in-flight completion.
type Request struct {
	ID   uuid.UUID
	Mode prompt.Mode

	session   *Session
	splicer   *splice.Splicer
	events    <-chan completion.Chunk
	cancel    context.CancelFunc
	cancelled atomic.Bool
	started   time.Time
	log       logrus.FieldLogger

	text     strings.Builder
	chunks   int
	finished bool
}

// Events delivers the request's chunks in order.
func (r *Request) Events() <-chan completion.Chunk { return r.events }

// Text returns the completion text received so far.
func (r *Request) Text() string { return r.text.String() }

// Waiting reports whether the placeholder is still standing in for the
// first chunk.
func (r *Request) Waiting() bool { return !r.finished && r.splicer.State().FirstChunk }

// Handle applies one chunk. done is true once the request has finished;
// err is the failure that ended it, if any.
func (r *Request) Handle(chunk completion.Chunk) (done bool, err error) {
	if r.finished {
		return true, nil
	}
	switch {
	case chunk.Err != nil:
		return true, r.fail(chunk.Err)
	case chunk.Done:
		r.splicer.Finish()
		r.finish(history.StatusDone, "")
		return true, nil
	default:
		if chunk.Text != "" {
			r.chunks++
			r.text.WriteString(chunk.Text)
		}
		r.splicer.Apply(chunk.Text)
		return false, nil
	}
}

// HandleClosed is called when Events closes without a terminal chunk,
// which only happens after cancellation.
func (r *Request) HandleClosed() error {
	if r.finished {
		return nil
	}
	return r.fail(context.Canceled)
}

// Cancel aborts the request. Safe from any goroutine; the placeholder is
// cleaned up when the resulting close or error reaches Handle.
func (r *Request) Cancel() {
	r.cancelled.Store(true)
	r.cancel()
}

func (r *Request) fail(err error) error {
	if r.finished {
		return err
	}
	r.splicer.Fail(err)
	status := history.StatusFailed
	if r.cancelled.Load() || errors.Is(err, context.Canceled) {
		status = history.StatusCancelled
	}
	r.finish(status, err.Error())
	return err
}

func (r *Request) finish(status history.Status, errMsg string) {
	r.finished = true
	r.cancel()
	r.session.release(r)

	entry := r.log.WithFields(logrus.Fields{
		"status":  status,
		"chunks":  r.chunks,
		"elapsed": time.Since(r.started),
	})
	if errMsg != "" {
		entry.WithField("error", errMsg).Warn("request ended")
	} else {
		entry.Info("request finished")
	}

	if rec := r.session.rec; rec != nil {
		if err := rec.Finish(r.ID, status, r.text.String(), errMsg); err != nil {
			r.log.WithError(err).Warn("history finish failed")
		}
	}
}
