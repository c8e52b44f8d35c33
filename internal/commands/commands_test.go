package commands

import (
	"strings"
	"testing"

	"allora/internal/prompt"
)

func TestParse_NonSlashCommand(t *testing.T) {
	tests := []string{
		"hello world",
		"",
		"   ",
		"help",
		"both",
		"translate this please",
	}

	for _, input := range tests {
		result := Parse(input)
		if result != nil {
			t.Errorf("Parse(%q) = %v, want nil", input, result)
		}
	}
}

func TestParse_Help(t *testing.T) {
	tests := []string{
		"/help",
		"/HELP",
		"/Help",
		"  /help  ",
		"/help extra args ignored",
	}

	for _, input := range tests {
		result := Parse(input)
		if result == nil {
			t.Errorf("Parse(%q) = nil, want Help{}", input)
			continue
		}
		if _, ok := result.(Help); !ok {
			t.Errorf("Parse(%q) = %T, want Help", input, result)
		}
		if result.Type() != "help" {
			t.Errorf("Parse(%q).Type() = %q, want %q", input, result.Type(), "help")
		}
	}
}

func TestParse_Send(t *testing.T) {
	tests := []struct {
		input    string
		wantMode prompt.Mode
	}{
		{"/both", prompt.SendBoth},
		{"/text", prompt.SendTextOnly},
		{"/clip", prompt.ContinueClipboard},
		{"/clipboard", prompt.ContinueClipboard},
		{"/cont", prompt.ContinueText},
		{"/CONTINUE", prompt.ContinueText},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		s, ok := result.(Send)
		if !ok {
			t.Errorf("Parse(%q) = %T, want Send", tt.input, result)
			continue
		}
		if s.Mode != tt.wantMode {
			t.Errorf("Parse(%q).Mode = %v, want %v", tt.input, s.Mode, tt.wantMode)
		}
		if s.Type() != "send" {
			t.Errorf("Parse(%q).Type() = %q, want %q", tt.input, s.Type(), "send")
		}
	}
}

func TestParse_Tokens(t *testing.T) {
	tests := []struct {
		input   string
		wantN   int
		wantErr string
	}{
		{"/tokens 1", 1, ""},
		{"/tokens 250", 250, ""},
		{"/tokens 500", 500, ""},
		{"/tokens 0", 0, "between 1 and 500"},
		{"/tokens 501", 0, "between 1 and 500"},
		{"/tokens many", 0, "not a number"},
		{"/tokens", 0, "requires a number"},
		{"/tokens 1 2", 0, "requires a number"},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		if tt.wantErr != "" {
			pe, ok := result.(ParseError)
			if !ok {
				t.Errorf("Parse(%q) = %T, want ParseError", tt.input, result)
				continue
			}
			if !strings.Contains(pe.Message, tt.wantErr) {
				t.Errorf("Parse(%q).Message = %q, want message containing %q", tt.input, pe.Message, tt.wantErr)
			}
			continue
		}
		st, ok := result.(SetTokens)
		if !ok {
			t.Errorf("Parse(%q) = %T, want SetTokens", tt.input, result)
			continue
		}
		if st.N != tt.wantN {
			t.Errorf("Parse(%q).N = %d, want %d", tt.input, st.N, tt.wantN)
		}
	}
}

func TestParse_Temperature(t *testing.T) {
	if st, ok := Parse("/temp 0.2").(SetTemperature); !ok || st.Value != 0.2 {
		t.Errorf("Parse(/temp 0.2) = %v", Parse("/temp 0.2"))
	}
	for _, input := range []string{"/temp", "/temp hot", "/temp -1", "/temp 3"} {
		if _, ok := Parse(input).(ParseError); !ok {
			t.Errorf("Parse(%q) = %T, want ParseError", input, Parse(input))
		}
	}
}

func TestParse_Stream(t *testing.T) {
	tests := []struct {
		input  string
		wantOn bool
	}{
		{"/stream on", true},
		{"/stream ON", true},
		{"/stream true", true},
		{"/stream off", false},
		{"/stream no", false},
	}

	for _, tt := range tests {
		ss, ok := Parse(tt.input).(SetStream)
		if !ok {
			t.Errorf("Parse(%q) = %T, want SetStream", tt.input, Parse(tt.input))
			continue
		}
		if ss.On != tt.wantOn {
			t.Errorf("Parse(%q).On = %v, want %v", tt.input, ss.On, tt.wantOn)
		}
	}

	for _, input := range []string{"/stream", "/stream maybe"} {
		if _, ok := Parse(input).(ParseError); !ok {
			t.Errorf("Parse(%q) = %T, want ParseError", input, Parse(input))
		}
	}
}

func TestParse_Replace(t *testing.T) {
	for _, policy := range []string{"auto", "always", "never"} {
		sr, ok := Parse("/replace " + strings.ToUpper(policy)).(SetReplace)
		if !ok {
			t.Errorf("Parse(/replace %s) did not return SetReplace", policy)
			continue
		}
		if sr.Policy != policy {
			t.Errorf("Policy = %q, want %q", sr.Policy, policy)
		}
	}

	pe, ok := Parse("/replace sometimes").(ParseError)
	if !ok {
		t.Fatal("expected ParseError for unknown policy")
	}
	if !strings.Contains(pe.Message, "unknown replace policy") {
		t.Errorf("Message = %q", pe.Message)
	}
}

func TestParse_UnknownCommand(t *testing.T) {
	tests := []struct {
		input       string
		wantCommand string
	}{
		{"/unknown", "/unknown"},
		{"/foo", "/foo"},
		{"/new", "/new"},
		{"/SEND", "/send"},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		pe, ok := result.(ParseError)
		if !ok {
			t.Errorf("Parse(%q) = %T, want ParseError", tt.input, result)
			continue
		}
		if !strings.Contains(pe.Message, "unknown command") || !strings.Contains(pe.Message, tt.wantCommand) {
			t.Errorf("Parse(%q).Message = %q, want unknown command %q", tt.input, pe.Message, tt.wantCommand)
		}
	}
}

func TestCommandTypes(t *testing.T) {
	tests := []struct {
		cmd      Command
		wantType string
	}{
		{Help{}, "help"},
		{Send{}, "send"},
		{SetTokens{}, "tokens"},
		{SetTemperature{}, "temp"},
		{SetStream{}, "stream"},
		{SetReplace{}, "replace"},
		{Cancel{}, "cancel"},
		{Clear{}, "clear"},
		{ShowHistory{}, "history"},
		{ParseError{}, "error"},
	}

	for _, tt := range tests {
		if got := tt.cmd.Type(); got != tt.wantType {
			t.Errorf("%T.Type() = %q, want %q", tt.cmd, got, tt.wantType)
		}
	}
}

func TestParse_WhitespaceHandling(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"   /help   ", "help"},
		{"\t/cancel\t", "cancel"},
		{"/clear   ", "clear"},
		{"/tokens    42", "tokens"},
	}

	for _, tt := range tests {
		result := Parse(tt.input)
		if result == nil {
			t.Errorf("Parse(%q) = nil, want command of type %q", tt.input, tt.want)
			continue
		}
		if result.Type() != tt.want {
			t.Errorf("Parse(%q).Type() = %q, want %q", tt.input, result.Type(), tt.want)
		}
	}
}

func TestHelpText(t *testing.T) {
	help := HelpText()
	for _, cmd := range []string{"/help", "/both", "/text", "/clip", "/cont", "/tokens", "/temp", "/stream", "/replace", "/cancel", "/clear", "/history"} {
		if !strings.Contains(help, cmd) {
			t.Errorf("HelpText() missing %s", cmd)
		}
	}
}
