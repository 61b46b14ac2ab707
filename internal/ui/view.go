package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/yash-srivastava19/canopy/internal/app"
	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

func (a *App) View() string {
	if a.width == 0 {
		return "loading..."
	}
	st := a.ctl.State()
	switch st.Auth {
	case auth.StatusPending:
		return "loading..."
	case auth.StatusUnauthorized:
		return a.viewLogin()
	}

	if top, ok := dialog.Top(st.Dialogs); ok {
		return a.viewDialog(st, top)
	}

	switch a.state {
	case stateViewer:
		return a.viewViewer(st)
	case stateSearch:
		return a.viewSearch(st)
	case stateTagPicker:
		return a.viewTagPicker(st)
	case stateEditTags:
		return a.viewEditTags(st)
	case stateConfirmDelete:
		return a.viewConfirmDelete(st)
	}
	return a.viewList(st)
}

func (a *App) header(sub string) string {
	return styleTitle.Render("canopy") + styleDivider.Render("  —  ") + styleSubtitle.Render(sub) + "\n" +
		styleDivider.Render(strings.Repeat("─", a.width)) + "\n"
}

func (a *App) footer(hint string) string {
	var b strings.Builder
	b.WriteString(styleDivider.Render(strings.Repeat("─", a.width)) + "\n")
	if a.statusMsg != "" {
		sty := styleSuccess
		if a.statusIsError {
			sty = styleError
		}
		b.WriteString(sty.Render("  " + a.statusMsg))
	} else {
		b.WriteString(styleHint.Render("  " + hint))
	}
	return b.String()
}

func viewName(st app.State) string {
	switch {
	case st.ShowTrash:
		return "trash"
	case st.Tag != nil:
		return "#" + st.Tag.Name
	}
	return "all notes"
}

func sortLabel(s filter.Sort) string {
	label := map[filter.SortType]string{
		filter.SortModified:     "modified",
		filter.SortCreated:      "created",
		filter.SortAlphabetical: "a-z",
	}[s.Type]
	if s.Reversed {
		label += " ↑"
	}
	return label
}

// ── List ──────────────────────────────────────────────────────────────────────

func (a *App) viewList(st app.State) string {
	var b strings.Builder
	visible := a.ctl.Visible()
	opts := a.ctl.Display()

	sub := fmt.Sprintf("%s  ·  %d notes  ·  %s", viewName(st), len(visible), sortLabel(st.Sort))
	if st.Filter != "" {
		sub += fmt.Sprintf("  ·  /%s", st.Filter)
	}
	b.WriteString(a.header(sub))

	listH := max(a.height-5, 1)
	listW := a.width
	if st.ShowNavigation {
		listW -= sidebarWidth
	}

	var rows []string
	if len(visible) == 0 {
		msg := "no notes — press n to create one"
		if st.ShowTrash {
			msg = "trash is empty"
		}
		rows = append(rows, "", styleSubtitle.Render("  "+msg))
	}
	for i := a.listOffset; i < len(visible) && len(rows) < listH; i++ {
		n := visible[i]
		selected := st.Selected != nil && st.Selected.ID == n.ID
		rows = append(rows, noteRows(n, opts, listW, selected)...)
	}
	if len(rows) > listH {
		rows = rows[:listH]
	}
	for len(rows) < listH {
		rows = append(rows, "")
	}
	list := strings.Join(rows, "\n")

	if st.ShowNavigation {
		list = lipgloss.JoinHorizontal(lipgloss.Top, a.viewSidebar(st, listH), list)
	}
	if st.ShowNoteInfo && st.Selected != nil {
		list = lipgloss.JoinHorizontal(lipgloss.Top, list, viewNoteInfo(*st.Selected, len(st.Revisions)))
	}
	b.WriteString(list + "\n")

	hint := "j/k · Enter · e edit · n new · / search · d trash · T trash view · # tags · tab nav · s sort · v view · ? about · q"
	if st.ShowTrash {
		hint = "j/k · u restore · d delete forever · T back · q"
	}
	b.WriteString(a.footer(hint))
	return b.String()
}

// noteRows renders one note as Density rows: the title line followed by
// preview lines.
func noteRows(n notes.Note, opts display.Options, width int, selected bool) []string {
	age := humanTime(n.Modified)
	marker := "  "
	if n.Pinned() {
		marker = styleTag.Render("★ ")
	}
	title := truncate(display.Title(n.Content), max(width-len(age)-8, 10))
	pad := max(width-6-len([]rune(title))-len(age), 1)

	var first string
	if selected {
		first = "  " + marker + styleSelectedItem.Render(title) + strings.Repeat(" ", pad) + styleDimItem.Render(age)
	} else {
		first = "  " + marker + styleNormalItem.Render(title) + strings.Repeat(" ", pad) + styleDimItem.Render(age)
	}
	rows := []string{first}

	preview := wrap(display.Preview(n.Content), max(width-6, 10), opts.PreviewLines())
	for i := 0; i < opts.PreviewLines(); i++ {
		line := ""
		if i < len(preview) {
			line = preview[i]
		}
		rows = append(rows, "    "+styleDimItem.Render(line))
	}
	return rows
}

// wrap splits s into at most n lines of width runes, breaking on spaces
// where it can.
func wrap(s string, width, n int) []string {
	var out []string
	words := strings.Fields(s)
	line := ""
	for _, w := range words {
		if len(out) == n {
			break
		}
		switch {
		case line == "":
			line = w
		case len([]rune(line))+1+len([]rune(w)) <= width:
			line += " " + w
		default:
			out = append(out, truncate(line, width))
			line = w
		}
	}
	if line != "" && len(out) < n {
		out = append(out, truncate(line, width))
	}
	return out
}

func (a *App) viewSidebar(st app.State, height int) string {
	var lines []string
	item := func(label string, active bool) string {
		label = truncate(label, sidebarWidth-4)
		if active {
			return styleSelectedItem.Render("▸ " + label)
		}
		return styleNormalItem.Render("  " + label)
	}
	lines = append(lines,
		item("All notes", st.Tag == nil && !st.ShowTrash),
		item("Trash", st.ShowTrash),
		"",
		styleDivider.Render("TAGS"),
	)
	for _, t := range st.Tags {
		lines = append(lines, item("#"+t.Name, st.Tag != nil && st.Tag.ID == t.ID))
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	return styleSidebar.Width(sidebarWidth - 2).Height(height).Render(strings.Join(lines, "\n"))
}

func viewNoteInfo(n notes.Note, revisions int) string {
	lines := []string{
		styleLabel.Render("note info"),
		"",
		"created   " + n.Created.Local().Format("2006-01-02 15:04"),
		"modified  " + n.Modified.Local().Format("2006-01-02 15:04"),
		fmt.Sprintf("version   %d", n.Version),
		fmt.Sprintf("revisions %d", revisions),
		fmt.Sprintf("words     %d", wordCount(n.Content)),
	}
	if n.ShareURL != "" {
		lines = append(lines, "shared    "+n.ShareURL)
	}
	if n.PublishURL != "" {
		lines = append(lines, "published "+n.PublishURL)
	}
	return stylePanelBorder.Render(strings.Join(lines, "\n"))
}

// ── Viewer ────────────────────────────────────────────────────────────────────

func (a *App) viewViewer(st app.State) string {
	if st.Selected == nil {
		return "no note"
	}
	var b strings.Builder
	n := *st.Selected

	mode := "edit"
	if st.EditorMode == app.ModeMarkdown || n.Markdown() {
		mode = "markdown"
	}
	editHint := styleDimItem.Render("[e]edit  [M]" + mode + "  [t]tags  [q]back")
	title := styleTitle.Render(truncate(display.Title(n.Content), max(a.width-36, 10)))
	b.WriteString("  " + title + "  " + editHint + "\n")
	b.WriteString(styleDivider.Render(strings.Repeat("─", a.width)) + "\n")
	body := a.viewport.View()
	if st.ShowNoteInfo {
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, viewNoteInfo(n, len(st.Revisions)))
	}
	b.WriteString(body + "\n")

	pct := int(a.viewport.ScrollPercent() * 100)
	visible := a.ctl.Visible()
	pos := ""
	if i := indexOf(visible, n.ID); i >= 0 {
		pos = fmt.Sprintf(" (%d/%d)", i+1, len(visible))
	}
	b.WriteString(a.footer(fmt.Sprintf("j/k  gg/G  {/}  u/ctrl+d  e edit  i info  y share  q back%s  %d words  %d%%", pos, wordCount(n.Content), pct)))
	return b.String()
}

// ── Search ────────────────────────────────────────────────────────────────────

func (a *App) viewSearch(st app.State) string {
	var b strings.Builder
	b.WriteString(a.header("search"))
	b.WriteString(styleInputActive.Width(a.width-4).Render(a.searchInput.View()) + "\n")

	listH := max(a.height-8, 1)
	visible := a.ctl.Visible()
	if len(visible) == 0 {
		b.WriteString(styleSubtitle.Render("\n  no results") + "\n")
	}
	for i := 0; i < len(visible) && i < listH; i++ {
		n := visible[i]
		selected := st.Selected != nil && st.Selected.ID == n.ID
		b.WriteString(noteRows(n, display.Options{Mode: display.Condensed}, a.width, selected)[0] + "\n")
	}
	b.WriteString(a.footer("type to search  Enter keep  ctrl+n/p navigate  Esc clear"))
	return b.String()
}

// ── Tags ──────────────────────────────────────────────────────────────────────

func (a *App) viewTagPicker(st app.State) string {
	var b strings.Builder
	b.WriteString(a.header("tags") + "\n")
	if len(st.Tags) == 0 {
		b.WriteString(styleSubtitle.Render("  no tags yet — press t on a note to add some") + "\n")
	}
	for i, t := range st.Tags {
		count := 0
		for _, n := range st.Notes {
			if !n.Deleted && n.HasTag(t.Name) {
				count++
			}
		}
		label := fmt.Sprintf("#%s  %s", t.Name, styleDimItem.Render(fmt.Sprintf("%d", count)))
		if i == a.tagCursor {
			b.WriteString("  " + styleSelectedItem.Render("▸ ") + label + "\n")
		} else {
			b.WriteString("    " + label + "\n")
		}
	}
	b.WriteString("\n" + a.footer("j/k · Enter filter · a all notes · J/K reorder · x remove tag · Esc back"))
	return b.String()
}

func (a *App) viewEditTags(st app.State) string {
	var b strings.Builder
	title := ""
	if st.Selected != nil {
		title = display.Title(st.Selected.Content)
	}
	b.WriteString(a.header("tags: "+title) + "\n")
	b.WriteString(styleInputActive.Width(a.width-4).Render(a.tagsInput.View()) + "\n\n")
	b.WriteString(a.footer("comma separated  Enter save  Esc cancel"))
	return b.String()
}

func (a *App) viewConfirmDelete(st app.State) string {
	if st.Selected == nil {
		return a.viewList(st)
	}
	var b strings.Builder
	b.WriteString(a.header("trash") + "\n")
	b.WriteString(styleConfirm.Render(fmt.Sprintf("  Delete \"%s\" forever?", display.Title(st.Selected.Content))) + "\n\n")
	b.WriteString(styleNormalItem.Render("  y") + styleHint.Render(" yes   ") + styleNormalItem.Render("n / Esc") + styleHint.Render(" cancel") + "\n")
	return b.String()
}

// ── Dialogs ───────────────────────────────────────────────────────────────────

func (a *App) viewDialog(st app.State, d dialog.Dialog) string {
	spec, _ := a.ctl.Registry().Lookup(d.Type)
	var body []string
	switch d.Type {
	case dialog.About:
		body = []string{
			"canopy " + a.version,
			"notes in plain markdown files",
			"",
			styleDivider.Render("LIST"),
			"j/k move   Enter open   e edit   n new",
			"/ search   # tags   tab navigation",
			"d trash    T trash view   u restore",
			"p pin      m markdown     t edit tags",
			"s sort     S reverse      v density",
			"x export   , settings     y share",
		}
	case dialog.Settings:
		s := st.Settings
		body = []string{
			"theme       " + s.Theme + styleHint.Render("   t"),
			fmt.Sprintf("font size   %d", s.FontSize) + styleHint.Render("   +/-"),
			"display     " + string(s.NoteDisplay) + styleHint.Render("   v"),
			fmt.Sprintf("markdown    %v", s.MarkdownEnabled) + styleHint.Render("   m"),
			"sort        " + sortLabel(filter.Sort{Type: s.SortType, Reversed: s.SortReversed}),
			"account     " + s.AccountName,
		}
	case dialog.Share:
		id, _ := d.Params["note"].(string)
		url := ""
		for _, n := range st.Notes {
			if n.ID == id {
				url = n.ShareURL
			}
		}
		if url == "" {
			url = "not shared"
		}
		body = []string{"note  " + id, "link  " + url}
	}

	panel := stylePanelBorder.Render(styleLabel.Render(spec.Title) + "\n\n" + strings.Join(body, "\n"))
	placed := lipgloss.Place(a.width, max(a.height-2, 1), lipgloss.Center, lipgloss.Center, panel)
	return placed + "\n" + styleHint.Render("  Esc close")
}

// ── Login ─────────────────────────────────────────────────────────────────────

func (a *App) viewLogin() string {
	var b strings.Builder
	b.WriteString(a.header("sign in") + "\n")
	if a.signIn == nil {
		b.WriteString(styleSubtitle.Render("  signed out — run `canopy login` to sign in") + "\n\n")
		b.WriteString(styleHint.Render("  q quit"))
		return b.String()
	}
	b.WriteString(styleInputBorder.Width(a.width-4).Render(a.nameInput.View()) + "\n")
	b.WriteString(styleInputBorder.Width(a.width-4).Render(a.passInput.View()) + "\n\n")
	b.WriteString(a.footer("tab switch field  Enter sign in  Esc quit"))
	return b.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func humanTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw", int(d.Hours()/(24*7)))
	default:
		return t.Format("Jan 2")
	}
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 {
		maxLen = 4
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
