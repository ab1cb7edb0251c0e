package ui

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestParseYesNo(t *testing.T) {
	tests := []struct {
		in         string
		answer, ok bool
	}{
		{"y\n", true, true},
		{"YES", true, true},
		{"  yes  \n", true, true},
		{"n", false, true},
		{"No\n", false, true},
		{"\n", false, true},
		{"", false, true},
		{"maybe\n", false, false},
	}
	for _, tt := range tests {
		answer, ok := parseYesNo(tt.in)
		if answer != tt.answer || ok != tt.ok {
			t.Errorf("parseYesNo(%q) = %v, %v; want %v, %v", tt.in, answer, ok, tt.answer, tt.ok)
		}
	}
}

func TestConfirmerLinePrompt(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    bool
		prompts int
	}{
		{"accept", "y\n", true, 1},
		{"decline", "n\n", false, 1},
		{"default no", "\n", false, 1},
		{"reprompt on junk", "what\nyes\n", true, 2},
		{"eof declines", "", false, 1},
		{"junk then eof declines", "what", false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := NewConfirmer(strings.NewReader(tt.input), &out)

			if got := c.Confirm("Summarize conversation?", "over budget"); got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if n := strings.Count(out.String(), "Summarize conversation? (over budget) [y/N]: "); n != tt.prompts {
				t.Errorf("prompted %d times, want %d\n%s", n, tt.prompts, out.String())
			}
		})
	}
}

func TestConfirmerSharedLineReader(t *testing.T) {
	lines := bufio.NewReader(strings.NewReader("y\nnext message\n"))
	c := NewConfirmer(strings.NewReader(""), &bytes.Buffer{}).WithLineReader(lines)

	if !c.Confirm("Continue?", "") {
		t.Fatal("expected confirmation")
	}
	rest, _ := lines.ReadString('\n')
	if rest != "next message\n" {
		t.Errorf("remaining input = %q", rest)
	}
}
