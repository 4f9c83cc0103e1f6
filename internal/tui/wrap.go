package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// wrapWithPrefix lays out one transcript line: the timestamp prefix leads
// the first row and every continuation row gets a matching indent, so the
// event text reads as its own column.
func wrapWithPrefix(prefix, body string, width int) string {
	if width <= 0 {
		return prefix + body
	}
	prefixWidth := lipgloss.Width(prefix)
	if prefixWidth >= width {
		return wrapToWidth(prefix+body, width)
	}

	lines := strings.Split(wrapToWidth(body, width-prefixWidth), "\n")
	indent := strings.Repeat(" ", prefixWidth)
	for i, line := range lines {
		if i == 0 {
			lines[i] = prefix + line
		} else {
			lines[i] = indent + line
		}
	}
	return strings.Join(lines, "\n")
}

// wrapToWidth hard-wraps text at width columns, keeping the line breaks
// already present. Tool payloads arrive as one unbroken JSON string, so
// breaking mid-word is expected.
func wrapToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}
	wrap := lipgloss.NewStyle().Width(width)

	var out []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if line == "" {
			out = append(out, "")
			continue
		}
		for _, row := range strings.Split(wrap.Render(line), "\n") {
			out = append(out, strings.TrimRight(row, " "))
		}
	}
	return strings.Join(out, "\n")
}
