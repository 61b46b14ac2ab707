package display

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTitle(t *testing.T) {
	tests := []struct {
		content string
		want    string
	}{
		{"# Hello\n\nbody", "Hello"},
		{"\n\n  ## Spaced  \nbody", "Spaced"},
		{"plain first line", "plain first line"},
		{"", DefaultTitle},
		{"#\n\n", DefaultTitle},
	}
	for _, tt := range tests {
		if got := Title(tt.content); got != tt.want {
			t.Errorf("Title(%q): got %q, want %q", tt.content, got, tt.want)
		}
	}
}

func TestTitle_truncates(t *testing.T) {
	got := Title(strings.Repeat("é", 100))
	if utf8.RuneCountInString(got) != maxTitleRunes {
		t.Errorf("expected %d runes, got %d", maxTitleRunes, utf8.RuneCountInString(got))
	}
}

func TestPreview(t *testing.T) {
	got := Preview("# Title\n\nline one\n   line   two\n")
	if got != "line one line two" {
		t.Errorf("got %q", got)
	}
	if Preview("only title") != "" {
		t.Error("expected empty preview")
	}
}

func TestDensity(t *testing.T) {
	if (Options{Mode: Condensed}).Density() != 1 {
		t.Error("condensed should be one row")
	}
	if (Options{Mode: ParseMode("nonsense")}).Density() != 2 {
		t.Error("unknown mode should fall back to comfy")
	}
	if (Options{Mode: ParseMode(" Expanded ")}).PreviewLines() != 3 {
		t.Error("expanded should show three preview lines")
	}
}
