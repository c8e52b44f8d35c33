package prompt

import (
	"strings"
	"testing"
)

func TestBuild(t *testing.T) {
	const head = "Below is an instruction that describes a task. Write a response that appropriately completes the request. \n### Instruction:\n "

	tests := []struct {
		mode      Mode
		field     string
		clipboard string
		wantBody  string
	}{
		{SendBoth, "Summarize", "long text", `Summarize : "long text" |`},
		{SendTextOnly, "Write a haiku", "ignored", "Write a haiku"},
		{ContinueClipboard, "ignored", "Once upon", `Continue this text: "Once upon" |`},
		{ContinueText, "It was a dark", "ignored", `Continue this text: "It was a dark" |`},
		{SendBoth, "", "", ` : "" |`},
		{SendTextOnly, "", "", ""},
	}

	for _, tt := range tests {
		got := Build(tt.mode, tt.field, tt.clipboard)
		want := head + tt.wantBody + " \n### Response:"
		if got != want {
			t.Errorf("Build(%s, %q, %q) = %q, want %q", tt.mode, tt.field, tt.clipboard, got, want)
		}
	}
}

func TestBuild_AlwaysEndsWithResponseMarker(t *testing.T) {
	inputs := []string{"", "x", "### Response:", "\n\n", "\"quoted\""}
	for _, m := range Modes() {
		for _, field := range inputs {
			for _, clip := range inputs {
				got := Build(m, field, clip)
				if !strings.Contains(got, ResponseMarker) {
					t.Errorf("Build(%s, %q, %q) missing %q", m, field, clip, ResponseMarker)
				}
				if again := Build(m, field, clip); again != got {
					t.Errorf("Build(%s) not deterministic", m)
				}
			}
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input string
		want  Mode
	}{
		{"both", SendBoth},
		{"BOTH", SendBoth},
		{"text", SendTextOnly},
		{"clipboard", ContinueClipboard},
		{"clip", ContinueClipboard},
		{" continue ", ContinueText},
		{"cont", ContinueText},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.input)
		if err != nil {
			t.Errorf("ParseMode(%q) error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %s, want %s", tt.input, got, tt.want)
		}
		if back, _ := ParseMode(got.String()); back != got {
			t.Errorf("ParseMode(%q.String()) = %s", got, back)
		}
	}

	if _, err := ParseMode("sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestReplacesText(t *testing.T) {
	if !SendBoth.ReplacesText() || !SendTextOnly.ReplacesText() {
		t.Error("send modes should replace the field text")
	}
	if ContinueClipboard.ReplacesText() || ContinueText.ReplacesText() {
		t.Error("continue modes should append")
	}
}
