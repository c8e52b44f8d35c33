// Package prompt builds the instruction sent to the completion endpoint.
package prompt

import (
	"fmt"
	"strings"
)

// Mode selects which text sources feed the instruction.
type Mode int

const (
	SendBoth Mode = iota
	SendTextOnly
	ContinueClipboard
	ContinueText
)

// ResponseMarker ends every instruction. Legacy endpoints echo the prompt,
// so the completion starts after it.
const ResponseMarker = "### Response:"

const header = "Below is an instruction that describes a task. Write a response that appropriately completes the request. \n### Instruction:\n "

func (m Mode) String() string {
	switch m {
	case SendBoth:
		return "both"
	case SendTextOnly:
		return "text"
	case ContinueClipboard:
		return "clipboard"
	case ContinueText:
		return "continue"
	default:
		return "unknown"
	}
}

// Label is the button title shown by the keyboard host.
func (m Mode) Label() string {
	switch m {
	case SendBoth:
		return "Send Both"
	case SendTextOnly:
		return "Send Text"
	case ContinueClipboard:
		return "Clipboard..."
	case ContinueText:
		return "Text..."
	default:
		return "?"
	}
}

// ReplacesText reports whether a completion for this mode replaces the
// text before the cursor. Send modes consume the field text as the
// instruction; continue modes extend it.
func (m Mode) ReplacesText() bool {
	return m == SendBoth || m == SendTextOnly
}

// Modes lists every mode in button order.
func Modes() []Mode {
	return []Mode{SendBoth, SendTextOnly, ContinueClipboard, ContinueText}
}

// ParseMode maps a flag or command argument to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "both", "send-both":
		return SendBoth, nil
	case "text", "send-text":
		return SendTextOnly, nil
	case "clipboard", "clip":
		return ContinueClipboard, nil
	case "continue", "cont":
		return ContinueText, nil
	default:
		return SendBoth, fmt.Errorf("unknown mode %q (want both, text, clipboard or continue)", s)
	}
}

// Build returns the instruction for mode. Empty inputs leave empty slots.
func Build(mode Mode, fieldText, clipboardText string) string {
	var body string
	switch mode {
	case SendBoth:
		body = fmt.Sprintf("%s : \"%s\" |", fieldText, clipboardText)
	case ContinueClipboard:
		body = fmt.Sprintf("Continue this text: \"%s\" |", clipboardText)
	case ContinueText:
		body = fmt.Sprintf("Continue this text: \"%s\" |", fieldText)
	default:
		body = fieldText
	}
	return header + body + " \n" + ResponseMarker
}
