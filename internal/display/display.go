// Package display holds the note presentation settings shared by the
// controller, the TUI and the CLI, plus pure formatting helpers.
package display

import (
	"strings"
	"unicode/utf8"
)

// Mode controls how much of each note the list shows.
type Mode string

const (
	Comfy     Mode = "comfy"
	Condensed Mode = "condensed"
	Expanded  Mode = "expanded"
)

// ParseMode falls back to Comfy for unknown values.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case Condensed:
		return Condensed
	case Expanded:
		return Expanded
	}
	return Comfy
}

const (
	DefaultTitle  = "New Note..."
	maxTitleRunes = 64
	maxPreview    = 200
)

// Options is the display capability injected into the controller and the
// renderers.
type Options struct {
	Mode     Mode
	FontSize int
}

// Density is the number of list rows a note occupies.
func (o Options) Density() int {
	switch o.Mode {
	case Condensed:
		return 1
	case Expanded:
		return 4
	}
	return 2
}

// PreviewLines is how many preview lines follow the title.
func (o Options) PreviewLines() int {
	return o.Density() - 1
}

// Title is the first non-blank line of content with any heading marker
// removed.
func Title(content string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line == "" {
			continue
		}
		return truncate(line, maxTitleRunes)
	}
	return DefaultTitle
}

// Preview is the content after the title line with whitespace collapsed.
func Preview(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		rest := strings.Join(lines[i+1:], " ")
		return truncate(strings.Join(strings.Fields(rest), " "), maxPreview)
	}
	return ""
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
