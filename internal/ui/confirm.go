package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Confirmer asks yes/no questions on a terminal or a plain line stream.
type Confirmer struct {
	in  io.Reader
	out io.Writer

	// reader is shared across prompts so buffered input is not lost.
	reader *bufio.Reader
	// interactive selects the huh form instead of the line prompt.
	interactive bool
}

// NewConfirmer creates a Confirmer. The huh form is used only when both in
// and out are terminals; otherwise a "[y/N]" prompt is read line by line.
func NewConfirmer(in io.Reader, out io.Writer) *Confirmer {
	return &Confirmer{
		in:          in,
		out:         out,
		reader:      bufio.NewReader(in),
		interactive: isTerminal(in) && isTerminal(out),
	}
}

// WithLineReader makes the line prompt read from r. Use it when the caller
// also reads lines from the same input so buffered text is not split.
func (c *Confirmer) WithLineReader(r *bufio.Reader) *Confirmer {
	c.reader = r
	return c
}

// Confirm asks the question and reports whether the user accepted.
// Read errors and EOF count as a refusal.
func (c *Confirmer) Confirm(title, description string) bool {
	if c.interactive {
		return c.huhConfirm(title, description)
	}
	return c.lineConfirm(title, description)
}

func (c *Confirmer) huhConfirm(title, description string) bool {
	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				WithButtonAlignment(lipgloss.Left).
				Value(&confirmed),
		),
	).WithShowHelp(false).WithInput(c.in).WithOutput(c.out)

	if err := form.Run(); err != nil {
		return false
	}
	return confirmed
}

func (c *Confirmer) lineConfirm(title, description string) bool {
	question := title
	if description != "" {
		question += " (" + description + ")"
	}

	for {
		fmt.Fprintf(c.out, "%s [y/N]: ", question)
		response, err := c.reader.ReadString('\n')
		answer, ok := parseYesNo(response)
		if ok {
			return answer
		}
		if err != nil {
			fmt.Fprintln(c.out)
			return false
		}
	}
}

// parseYesNo interprets a typed answer. An empty answer means no.
func parseYesNo(response string) (answer, ok bool) {
	switch strings.TrimSpace(strings.ToLower(response)) {
	case "y", "yes":
		return true, true
	case "", "n", "no":
		return false, true
	}
	return false, false
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
