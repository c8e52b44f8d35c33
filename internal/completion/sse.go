package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

const dataPrefix = "data: "

type streamEvent struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
}

// LineDecoder splits raw body reads into newline-terminated lines. A line
// cut across two reads is held until its newline arrives.
type LineDecoder struct {
	pending []byte
}

// Feed appends p and returns every line it completed, without the line
// terminator.
func (d *LineDecoder) Feed(p []byte) []string {
	d.pending = append(d.pending, p...)
	var lines []string
	for {
		i := bytes.IndexByte(d.pending, '\n')
		if i < 0 {
			break
		}
		lines = append(lines, strings.TrimSuffix(string(d.pending[:i]), "\r"))
		d.pending = d.pending[i+1:]
	}
	return lines
}

// Flush returns whatever is left after the body ends.
func (d *LineDecoder) Flush() string {
	rest := strings.TrimSuffix(string(d.pending), "\r")
	d.pending = nil
	return rest
}

// DecodeEvent reads one stream line. ok is false for lines that are not
// data events; err is a *StreamDecodeError when the payload is not a
// completion event.
func DecodeEvent(line string) (text string, ok bool, err error) {
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false, nil
	}
	payload := strings.TrimPrefix(line, dataPrefix)

	var ev streamEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return "", false, &StreamDecodeError{Line: line, Err: err}
	}
	if len(ev.Choices) == 0 {
		return "", false, &StreamDecodeError{Line: line, Err: ErrShapeMismatch}
	}
	return ev.Choices[0].Text, true, nil
}

// ReadEvents reads an event stream until EOF and calls emit with the text
// of every decoded event, in order. Undecodable lines go to skip (which
// may be nil) and are otherwise ignored.
func ReadEvents(ctx context.Context, r io.Reader, emit func(string) error, skip func(error)) error {
	var dec LineDecoder
	buf := make([]byte, 4096)

	handle := func(line string) error {
		text, ok, err := DecodeEvent(line)
		if err != nil {
			if skip != nil {
				skip(err)
			}
			return nil
		}
		if !ok {
			return nil
		}
		return emit(text)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		for _, line := range dec.Feed(buf[:n]) {
			if err := handle(line); err != nil {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			if rest := dec.Flush(); rest != "" {
				return handle(rest)
			}
			return nil
		}
		if readErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return &TransportError{Op: "read stream", Err: readErr}
		}
	}
}
