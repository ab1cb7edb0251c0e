package cmd

import (
	"strings"
	"testing"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line     string
		wantName string
		wantArgs int
	}{
		{"/help", "help", 0},
		{"/CLEAR", "clear", 0},
		{"  /tokens  extra words ", "tokens", 2},
		{"", "", 0},
	}
	for _, tt := range tests {
		name, args := parseCommand(tt.line)
		if name != tt.wantName || len(args) != tt.wantArgs {
			t.Errorf("parseCommand(%q) = %q, %v; want %q with %d args", tt.line, name, args, tt.wantName, tt.wantArgs)
		}
	}
}

func TestFindCommand(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"help", "help", true},
		{"/help", "help", true},
		{"?", "help", true},
		{"quit", "exit", true},
		{"q", "exit", true},
		{"compact", "summarize", true},
		{"new", "clear", true},
		{"nope", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, ok := FindCommand(tt.name)
			if ok != tt.wantOK || cmd.Name != tt.want {
				t.Errorf("FindCommand(%q) = %q, %v; want %q, %v", tt.name, cmd.Name, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestSuggestCommands(t *testing.T) {
	tests := []struct {
		query string
		first string
	}{
		{"tokn", "tokens"},
		{"/sumarize", "summarize"},
		{"hist", "history"},
		{"ext", "exit"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := SuggestCommands(tt.query)
			if len(got) == 0 {
				t.Fatalf("no suggestions for %q", tt.query)
			}
			if got[0].Name != tt.first {
				t.Errorf("first suggestion for %q = %q, want %q", tt.query, got[0].Name, tt.first)
			}
		})
	}

	if got := SuggestCommands(""); len(got) != len(AllCommands()) {
		t.Errorf("empty query returned %d commands, want all %d", len(got), len(AllCommands()))
	}
	if got := SuggestCommands("zzzz"); len(got) != 0 {
		t.Errorf("expected no suggestions, got %v", got)
	}
}

func TestCommandNamesUnique(t *testing.T) {
	seen := map[string]string{}
	for _, cmd := range AllCommands() {
		for _, name := range append([]string{cmd.Name}, cmd.Aliases...) {
			if owner, ok := seen[name]; ok {
				t.Errorf("%q used by both /%s and /%s", name, owner, cmd.Name)
			}
			seen[name] = cmd.Name
		}
		if !strings.HasPrefix(cmd.Usage, "/"+cmd.Name) {
			t.Errorf("usage %q does not start with /%s", cmd.Usage, cmd.Name)
		}
	}
}

func TestHelpMarkdownListsCommands(t *testing.T) {
	help := helpMarkdown()
	for _, cmd := range AllCommands() {
		if !strings.Contains(help, "`/"+cmd.Name+"`") {
			t.Errorf("help is missing /%s", cmd.Name)
		}
	}
}
