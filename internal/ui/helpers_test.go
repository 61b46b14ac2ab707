package ui

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/yash-srivastava19/canopy/internal/app"
	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		input    string
		max      int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello w…"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"", 5, ""},
	}
	for _, tt := range tests {
		got := truncate(tt.input, tt.max)
		if got != tt.expected {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.input, tt.max, got, tt.expected)
		}
	}
}

func TestHumanTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		t        time.Time
		expected string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m"},
		{now.Add(-3 * time.Hour), "3h"},
		{now.Add(-2 * 24 * time.Hour), "2d"},
		{now.Add(-10 * 24 * time.Hour), "1w"},
	}

	for _, tt := range tests {
		got := humanTime(tt.t)
		if got != tt.expected {
			t.Errorf("humanTime(%v ago) = %q, want %q", time.Since(tt.t).Round(time.Second), got, tt.expected)
		}
	}
}

func TestWrap(t *testing.T) {
	tests := []struct {
		input string
		width int
		n     int
		want  []string
	}{
		{"one two three", 7, 2, []string{"one two", "three"}},
		{"one two three", 7, 1, []string{"one two"}},
		{"one two three", 20, 3, []string{"one two three"}},
		{"anything", 10, 0, nil},
		{"", 10, 2, nil},
	}
	for _, tt := range tests {
		got := wrap(tt.input, tt.width, tt.n)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrap(%q, %d, %d) = %q, want %q", tt.input, tt.width, tt.n, got, tt.want)
		}
	}
}

func TestSplitTags(t *testing.T) {
	got := splitTags(" work, #home  ideas,,")
	if strings.Join(got, ",") != "work,home,ideas" {
		t.Errorf("got %q", got)
	}
	if got := splitTags(""); got == nil || len(got) != 0 {
		t.Errorf("empty input should give an empty list, got %#v", got)
	}
}

func TestCycles(t *testing.T) {
	if nextSort(filter.SortModified) != filter.SortCreated || nextSort(filter.SortAlphabetical) != filter.SortModified {
		t.Error("sort cycle")
	}
	if nextTheme("system") != "light" || nextTheme("dark") != "system" {
		t.Error("theme cycle")
	}
}

// newTestApp wires an App to a controller over memory buckets.
func newTestApp(t *testing.T, client auth.Client, seed ...notes.Note) *App {
	t.Helper()
	nb := bucket.NewNoteMemory()
	nb.Seed(seed...)
	ctl, err := app.New(app.Options{
		Notes:  nb,
		Tags:   bucket.NewMemory[notes.Tag](nil, nil),
		Auth:   client,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = ctl.Shutdown()
	})
	if err := ctl.Init(ctx); err != nil {
		t.Fatal(err)
	}
	a := New(ctx, Options{Controller: ctl, Editor: "true"})
	a.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return a
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(a *App, keys ...string) {
	for _, k := range keys {
		a.Update(key(k))
	}
}

func seed(ids ...string) []notes.Note {
	base := time.Now().Add(-time.Hour)
	out := make([]notes.Note, len(ids))
	for i, id := range ids {
		out[i] = notes.Note{
			ID:       id,
			Content:  "# note " + id + "\n\nbody of " + id,
			Created:  base.Add(time.Duration(i) * time.Minute),
			Modified: base.Add(time.Duration(i) * time.Minute),
			Version:  1,
		}
	}
	return out
}

func TestApp_navigationAndTrash(t *testing.T) {
	a := newTestApp(t, auth.Open{Name: "me"}, seed("a", "b", "c")...)

	// newest first: c, b, a
	press(a, "j")
	if sel := a.ctl.State().Selected; sel == nil || sel.ID != "c" {
		t.Fatalf("first j should select the top note, got %v", sel)
	}
	press(a, "j", "j", "j")
	if sel := a.ctl.State().Selected; sel.ID != "a" {
		t.Errorf("j should stop at the bottom, got %s", sel.ID)
	}
	press(a, "k", "d")
	if sel := a.ctl.State().Selected; sel == nil || sel.ID != "c" {
		t.Errorf("trashing b should select c, got %v", sel)
	}
	if len(a.ctl.Visible()) != 2 {
		t.Errorf("visible after trash: %d", len(a.ctl.Visible()))
	}

	press(a, "T")
	if !a.ctl.State().ShowTrash || len(a.ctl.Visible()) != 1 {
		t.Fatal("T should open the trash view")
	}
	if !strings.Contains(a.View(), "note b") {
		t.Error("trash view should list b")
	}
	press(a, "j", "u")
	if len(a.ctl.Visible()) != 0 {
		t.Error("restore should empty the trash view")
	}
	press(a, "T")
	if a.ctl.State().ShowTrash || len(a.ctl.Visible()) != 3 {
		t.Error("T again should show all notes")
	}
}

func TestApp_viewerAndDialogs(t *testing.T) {
	a := newTestApp(t, auth.Open{Name: "me"}, seed("a")...)
	press(a, "j", "enter")
	if a.state != stateViewer {
		t.Fatalf("enter should open the viewer")
	}
	if !strings.Contains(a.View(), "body of a") {
		t.Error("viewer should show the note body")
	}
	press(a, "q", "?")
	if !strings.Contains(a.View(), "About canopy") {
		t.Error("? should open the about dialog")
	}
	press(a, "?")
	if n := len(a.ctl.State().Dialogs); n != 1 {
		t.Errorf("dialog keys are swallowed while open, got %d dialogs", n)
	}
	press(a, "esc")
	if len(a.ctl.State().Dialogs) != 0 {
		t.Error("esc should close the dialog")
	}
}

func TestApp_outsideClickClosesNavigation(t *testing.T) {
	a := newTestApp(t, auth.Open{Name: "me"}, seed("a")...)
	press(a, "tab")
	if !a.ctl.State().ShowNavigation {
		t.Fatal("tab should open navigation")
	}
	click := func(x int) {
		a.Update(tea.MouseMsg{X: x, Y: 3, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	}
	click(2)
	if !a.ctl.State().ShowNavigation {
		t.Error("click inside the sidebar should keep it open")
	}
	click(sidebarWidth + 10)
	if a.ctl.State().ShowNavigation {
		t.Error("click outside should close navigation")
	}
}

func TestApp_signedOut(t *testing.T) {
	a := newTestApp(t, nil)
	if a.state != stateLogin {
		t.Fatalf("unauthorized should show the login screen, state %d", a.state)
	}
	if !strings.Contains(a.View(), "canopy login") {
		t.Error("without a sign-in func the screen should point at the CLI")
	}
}

func TestApp_searchFilters(t *testing.T) {
	a := newTestApp(t, auth.Open{Name: "me"}, seed("alpha", "beta")...)
	press(a, "/", "b", "e", "t")
	if a.ctl.State().Filter != "bet" {
		t.Errorf("filter: %q", a.ctl.State().Filter)
	}
	if v := a.ctl.Visible(); len(v) != 1 || v[0].ID != "beta" {
		t.Errorf("visible: %v", v)
	}
	press(a, "esc")
	if a.ctl.State().Filter != "" || len(a.ctl.Visible()) != 2 {
		t.Error("esc should clear the search")
	}
}
