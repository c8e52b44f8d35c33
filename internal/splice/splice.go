// Package splice applies completion text to a host text field, showing a
// placeholder while the request is outstanding.
package splice

import "unicode/utf8"

// DefaultPlaceholder is shown between the request start and the first chunk.
const DefaultPlaceholder = " Processing ..."

// State is the per-request splice bookkeeping.
type State struct {
	// ReplaceAll deletes all text before the cursor on the first chunk
	// instead of just the placeholder.
	ReplaceAll bool
	// FirstChunk stays true until the first non-empty chunk is applied.
	FirstChunk bool
}

// Splicer owns the State of one request. All methods must be called from
// the goroutine that owns the buffer.
type Splicer struct {
	buf         Buffer
	placeholder string
	state       State
	showing     bool
	detached    bool
}

// New returns a Splicer for one request against buf.
func New(buf Buffer, placeholder string, replaceAll bool) *Splicer {
	return &Splicer{
		buf:         buf,
		placeholder: placeholder,
		state:       State{ReplaceAll: replaceAll},
	}
}

// State returns a copy of the current state.
func (s *Splicer) State() State { return s.state }

// Placeholder returns the loading text this splicer inserts.
func (s *Splicer) Placeholder() string { return s.placeholder }

// Begin inserts the placeholder. Call it before the request is sent.
func (s *Splicer) Begin() {
	if s.detached {
		return
	}
	s.buf.InsertText(s.placeholder)
	s.showing = s.placeholder != ""
	s.state.FirstChunk = true
}

// Apply splices one chunk. The first non-empty chunk clears the
// placeholder (or, with ReplaceAll, everything before the cursor); later
// chunks are appended.
func (s *Splicer) Apply(text string) {
	if s.detached || text == "" {
		return
	}
	if s.state.FirstChunk {
		if s.state.ReplaceAll {
			s.clearBeforeCursor()
		} else {
			s.removePlaceholder()
		}
		s.showing = false
		s.state.FirstChunk = false
	}
	s.buf.InsertText(text)
}

// ApplyWhole splices a blocking response in one step.
func (s *Splicer) ApplyWhole(text string) {
	s.Apply(text)
	s.Finish()
}

// Finish ends a successful request. A request that produced no text
// still has its placeholder removed.
func (s *Splicer) Finish() {
	if s.detached {
		return
	}
	s.removePlaceholder()
	s.state.FirstChunk = false
}

// Fail ends a failed request. The placeholder is removed if no chunk
// arrived; text already spliced stays. err is returned unchanged.
func (s *Splicer) Fail(err error) error {
	s.Finish()
	return err
}

// Detach stops all further buffer mutation. Used when the editing
// session goes away while a request is in flight.
func (s *Splicer) Detach() { s.detached = true }

func (s *Splicer) removePlaceholder() {
	if !s.showing {
		return
	}
	for n := utf8.RuneCountInString(s.placeholder); n > 0; n-- {
		s.buf.DeleteBackward()
	}
	s.showing = false
}

// maxClearPasses bounds clearBeforeCursor against hosts whose deletes
// have no effect.
const maxClearPasses = 1024

// clearBeforeCursor deletes backward until the host reports no text
// before the cursor. Hosts may expose only a window of the document, so
// it re-reads after each batch. A host that reports no context at all
// only loses the placeholder.
func (s *Splicer) clearBeforeCursor() {
	for pass := 0; pass < maxClearPasses; pass++ {
		before, ok := s.buf.DocumentContextBeforeInput()
		if !ok && pass == 0 {
			s.removePlaceholder()
			return
		}
		if !ok || before == "" {
			return
		}
		for n := utf8.RuneCountInString(before); n > 0; n-- {
			s.buf.DeleteBackward()
		}
	}
}
