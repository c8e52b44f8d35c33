// Package commands handles slash command parsing for the allora TUI.
package commands

import (
	"strconv"
	"strings"

	"allora/internal/completion"
	"allora/internal/prompt"
)

// Command interface for all command types
type Command interface {
	Type() string
}

// Help returns help text
type Help struct{}

func (Help) Type() string { return "help" }

// Send starts a completion in the given mode.
type Send struct {
	Mode prompt.Mode
}

func (Send) Type() string { return "send" }

// SetTokens moves the max-token slider.
type SetTokens struct {
	N int
}

func (SetTokens) Type() string { return "tokens" }

// SetTemperature changes the sampling temperature.
type SetTemperature struct {
	Value float64
}

func (SetTemperature) Type() string { return "temp" }

// SetStream toggles server-sent events.
type SetStream struct {
	On bool
}

func (SetStream) Type() string { return "stream" }

// SetReplace changes the first-chunk replace policy.
type SetReplace struct {
	Policy string // auto, always, never
}

func (SetReplace) Type() string { return "replace" }

// Cancel aborts the in-flight request
type Cancel struct{}

func (Cancel) Type() string { return "cancel" }

// Clear empties the text field
type Clear struct{}

func (Clear) Type() string { return "clear" }

// ShowHistory shows recent requests
type ShowHistory struct{}

func (ShowHistory) Type() string { return "history" }

// ParseError represents a command parsing error
type ParseError struct {
	Message string
}

func (ParseError) Type() string { return "error" }

// Parse parses user input and returns the appropriate Command.
// Returns nil if the input is not a slash command.
func Parse(input string) Command {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	if len(parts) == 0 {
		return nil
	}

	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "/help":
		return Help{}

	case "/both", "/text", "/clip", "/clipboard", "/cont", "/continue":
		mode, err := prompt.ParseMode(strings.TrimPrefix(cmd, "/"))
		if err != nil {
			return ParseError{Message: err.Error()}
		}
		return Send{Mode: mode}

	case "/tokens":
		if len(args) != 1 {
			return ParseError{Message: "/tokens requires a number"}
		}
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return ParseError{Message: "/tokens: not a number: " + args[0]}
		}
		if n < completion.MinMaxTokens || n > completion.MaxMaxTokens {
			return ParseError{Message: "/tokens must be between 1 and 500"}
		}
		return SetTokens{N: n}

	case "/temp":
		if len(args) != 1 {
			return ParseError{Message: "/temp requires a value"}
		}
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || v < 0 || v > 2 {
			return ParseError{Message: "/temp must be a number between 0 and 2"}
		}
		return SetTemperature{Value: v}

	case "/stream":
		if len(args) != 1 {
			return ParseError{Message: "/stream requires on or off"}
		}
		switch strings.ToLower(args[0]) {
		case "on", "true", "yes":
			return SetStream{On: true}
		case "off", "false", "no":
			return SetStream{On: false}
		default:
			return ParseError{Message: "/stream requires on or off"}
		}

	case "/replace":
		if len(args) != 1 {
			return ParseError{Message: "/replace requires auto, always or never"}
		}
		policy := strings.ToLower(args[0])
		switch policy {
		case "auto", "always", "never":
			return SetReplace{Policy: policy}
		default:
			return ParseError{Message: "unknown replace policy: " + policy}
		}

	case "/cancel":
		return Cancel{}

	case "/clear":
		return Clear{}

	case "/history":
		return ShowHistory{}

	default:
		return ParseError{Message: "unknown command: " + cmd}
	}
}

// HelpText returns the help text for all available commands.
func HelpText() string {
	return `Available commands:
  /help                  - Show this help
  /both                  - Send Both: text + clipboard
  /text                  - Send Text: the text field only
  /clip                  - Clipboard...: continue the clipboard
  /cont                  - Text...: continue the text field
  /tokens <1-500>        - Set max tokens
  /temp <0-2>            - Set temperature
  /stream on|off         - Toggle streaming
  /replace auto|always|never - First chunk replaces or appends
  /cancel                - Cancel the request in flight
  /clear                 - Clear the text field
  /history               - Show recent requests`
}
