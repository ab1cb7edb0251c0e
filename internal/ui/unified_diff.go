package ui

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// hunkRe parses a hunk header: @@ -start,count +start,count @@
var hunkRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// RenderUnifiedDiff renders a unified diff with line numbers and colored
// additions/removals. File headers are dropped; hunks are separated by "...".
// Removed lines are numbered at the position they would have had in the new file.
func (s *Styles) RenderUnifiedDiff(diffText string) string {
	if diffText == "" {
		return ""
	}

	lineNumWidth := diffLineNumWidth(diffText)
	var sb strings.Builder
	var newLineNum int
	var deletionOffset int // Tracks position within a deletion block
	hunkCount := 0

	for _, line := range strings.Split(diffText, "\n") {
		if strings.HasPrefix(line, "diff ") ||
			strings.HasPrefix(line, "--- ") ||
			strings.HasPrefix(line, "+++ ") ||
			line == "" {
			continue
		}

		prefix := line[0]
		content := line[1:]

		switch prefix {
		case '@':
			if matches := hunkRe.FindStringSubmatch(line); matches != nil {
				newLineNum, _ = strconv.Atoi(matches[2])
			}
			deletionOffset = 0
			if hunkCount > 0 {
				sb.WriteString(s.DiffContext.Render(strings.Repeat(" ", lineNumWidth)+"  ...") + "\n")
			}
			hunkCount++

		case '-':
			sb.WriteString(s.Error.Render(fmt.Sprintf("%*d- ", lineNumWidth, newLineNum+deletionOffset)))
			sb.WriteString(s.DiffRemove.Render(content) + "\n")
			deletionOffset++

		case '+':
			deletionOffset = 0
			sb.WriteString(s.Success.Render(fmt.Sprintf("%*d+ ", lineNumWidth, newLineNum)))
			sb.WriteString(s.DiffAdd.Render(content) + "\n")
			newLineNum++

		case ' ':
			deletionOffset = 0
			sb.WriteString(s.DiffContext.Render(fmt.Sprintf("%*d  ", lineNumWidth, newLineNum)))
			sb.WriteString(content + "\n")
			newLineNum++

		default:
			// "\ No newline at end of file" and anything unexpected
			sb.WriteString(s.Muted.Render(line) + "\n")
		}
	}

	return strings.TrimSuffix(sb.String(), "\n")
}

// diffLineNumWidth sizes the line number gutter from the largest hunk start.
func diffLineNumWidth(diffText string) int {
	maxLine := 0
	for _, line := range strings.Split(diffText, "\n") {
		matches := hunkRe.FindStringSubmatch(line)
		if matches == nil {
			continue
		}
		for _, m := range matches[1:] {
			if n, _ := strconv.Atoi(m); n > maxLine {
				maxLine = n
			}
		}
	}
	// Leave room for lines past the hunk start.
	width := len(strconv.Itoa(maxLine + 100))
	if width < 3 {
		width = 3
	}
	return width
}
