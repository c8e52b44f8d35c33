// Package clipboard provides the clipboard text fed into prompts.
package clipboard

import (
	"github.com/atotto/clipboard"
	"github.com/sirupsen/logrus"
)

// Reader returns the current clipboard string. ok is false when the
// clipboard is empty or cannot be read.
type Reader interface {
	ReadString() (text string, ok bool)
}

// System reads the OS clipboard.
type System struct {
	Log logrus.FieldLogger
}

func (s System) ReadString() (string, bool) {
	if clipboard.Unsupported {
		return "", false
	}
	text, err := clipboard.ReadAll()
	if err != nil {
		if s.Log != nil {
			s.Log.WithError(err).Debug("clipboard read failed")
		}
		return "", false
	}
	return text, text != ""
}

// Static always returns the same text. An empty Static reports no content.
type Static string

func (s Static) ReadString() (string, bool) {
	return string(s), s != ""
}

// Func adapts a function to Reader.
type Func func() (string, bool)

func (f Func) ReadString() (string, bool) { return f() }

// Text returns the clipboard string or "" when there is none.
func Text(r Reader) string {
	if r == nil {
		return ""
	}
	text, ok := r.ReadString()
	if !ok {
		return ""
	}
	return text
}
