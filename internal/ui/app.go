package ui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yash-srivastava19/canopy/internal/app"
	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

type appState int

const (
	stateList appState = iota
	stateViewer
	stateSearch
	stateTagPicker
	stateEditTags
	stateConfirmDelete
	stateLogin
)

const sidebarWidth = 24

// ── Messages ──────────────────────────────────────────────────────────────────

// inboxMsg carries one controller message into the bubbletea loop, which is
// then the only goroutine calling Handle.
type inboxMsg struct{ msg any }

type editorClosedMsg struct {
	id      string
	content string
	err     error
}

type signInMsg struct{ err error }

// ── App struct ────────────────────────────────────────────────────────────────

type Options struct {
	Controller *app.Controller
	Editor     string
	Version    string
	// SignIn is nil when there is no account to sign in to.
	SignIn func(name, password string) error
}

// App is the Bubble Tea host for the controller.
type App struct {
	ctx     context.Context
	ctl     *app.Controller
	editor  string
	version string
	signIn  func(name, password string) error

	state  appState
	width  int
	height int

	listOffset int

	viewport      viewport.Model
	renderedID    string
	renderedLines []string

	searchInput textinput.Model
	tagsInput   textinput.Model
	nameInput   textinput.Model
	passInput   textinput.Model

	tagCursor int

	// Vim g-prefix tracking
	lastKey string

	statusMsg     string
	statusIsError bool

	err error
}

func New(ctx context.Context, opts Options) *App {
	si := textinput.New()
	si.Placeholder = "search notes..."
	si.CharLimit = 200

	ti := textinput.New()
	ti.Placeholder = "tag, tag, ..."
	ti.CharLimit = 200

	ni := textinput.New()
	ni.Placeholder = "account name"
	ni.CharLimit = 64

	pi := textinput.New()
	pi.Placeholder = "password"
	pi.EchoMode = textinput.EchoPassword
	pi.CharLimit = 128

	editor := opts.Editor
	if editor == "" {
		editor = "vi"
	}
	return &App{
		ctx:         ctx,
		ctl:         opts.Controller,
		editor:      editor,
		version:     opts.Version,
		signIn:      opts.SignIn,
		viewport:    viewport.New(80, 20),
		searchInput: si,
		tagsInput:   ti,
		nameInput:   ni,
		passInput:   pi,
	}
}

// Err is the fatal error that stopped the program, if any.
func (a *App) Err() error {
	return a.err
}

func (a *App) Init() tea.Cmd {
	return a.waitForInbox()
}

// ── Commands ──────────────────────────────────────────────────────────────────

func (a *App) waitForInbox() tea.Cmd {
	inbox, ctx := a.ctl.Inbox(), a.ctx
	return func() tea.Msg {
		select {
		case m := <-inbox:
			return inboxMsg{msg: m}
		case <-ctx.Done():
			return nil
		}
	}
}

func editorCmd(editor, path string) *exec.Cmd {
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		parts = []string{"vi"}
	}
	args := append(parts[1:], path)
	return exec.Command(parts[0], args...)
}

// cmdOpenEditor edits a scratch copy of the note; the result comes back as
// an updateNoteContent command.
func (a *App) cmdOpenEditor(n notes.Note) tea.Cmd {
	f, err := os.CreateTemp("", "canopy-*.md")
	if err != nil {
		a.setStatus("editor: "+err.Error(), true)
		return nil
	}
	path := f.Name()
	_, err = f.WriteString(n.Content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		a.setStatus("editor: "+err.Error(), true)
		return nil
	}

	id := n.ID
	return tea.ExecProcess(editorCmd(a.editor, path), func(err error) tea.Msg {
		defer os.Remove(path)
		data, rerr := os.ReadFile(path)
		if err == nil {
			err = rerr
		}
		return editorClosedMsg{id: id, content: string(data), err: err}
	})
}

func (a *App) cmdSignIn(name, password string) tea.Cmd {
	signIn := a.signIn
	return func() tea.Msg {
		return signInMsg{err: signIn(name, password)}
	}
}

// dispatch runs a command against the controller and stops the program on
// a fatal error.
func (a *App) dispatch(action string, kv ...any) tea.Cmd {
	if err := a.ctl.Dispatch(command.New(action, kv...)); err != nil {
		a.err = err
		return tea.Quit
	}
	a.sync()
	return nil
}

// ── Update ────────────────────────────────────────────────────────────────────

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.viewport.Width = a.width - 2
		a.viewport.Height = a.height - 6
		a.renderedID = ""
		a.sync()

	case inboxMsg:
		if err := a.ctl.Handle(msg.msg); err != nil {
			a.err = err
			return a, tea.Quit
		}
		a.sync()
		return a, a.waitForInbox()

	case editorClosedMsg:
		if msg.err != nil {
			a.setStatus("editor: "+msg.err.Error(), true)
			return a, nil
		}
		return a, a.dispatch("updateNoteContent", "note", msg.id, "content", msg.content)

	case signInMsg:
		a.passInput.SetValue("")
		if msg.err != nil {
			a.setStatus("sign in: "+msg.err.Error(), true)
		}

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			nav := a.ctl.State().ShowNavigation
			a.ctl.ToolbarOutsideClick(nav && msg.X < sidebarWidth)
		}

	case tea.KeyMsg:
		a.statusMsg = ""
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}

		st := a.ctl.State()
		if st.Auth == auth.StatusUnauthorized {
			return a.updateLogin(msg)
		}
		if st.Auth != auth.StatusAuthorized {
			return a, nil
		}
		if len(st.Dialogs) > 0 {
			return a.updateDialog(msg)
		}

		switch a.state {
		case stateList:
			return a.updateList(msg)
		case stateViewer:
			return a.updateViewer(msg)
		case stateSearch:
			return a.updateSearch(msg)
		case stateTagPicker:
			return a.updateTagPicker(msg)
		case stateEditTags:
			return a.updateEditTags(msg)
		case stateConfirmDelete:
			return a.updateConfirmDelete(msg)
		}
	}

	return a, nil
}

// sync lines the local view state up with the controller after every
// message.
func (a *App) sync() {
	st := a.ctl.State()
	applyTheme(st.Settings.Theme)
	switch {
	case st.Auth == auth.StatusUnauthorized:
		if a.state != stateLogin {
			a.state = stateLogin
			a.nameInput.SetValue(st.Settings.AccountName)
			a.nameInput.Focus()
			a.passInput.Blur()
		}
		return
	case a.state == stateLogin:
		a.state = stateList
		a.nameInput.Blur()
		a.passInput.Blur()
	}

	if st.Selected == nil && (a.state == stateViewer || a.state == stateEditTags || a.state == stateConfirmDelete) {
		a.state = stateList
	}
	if a.state == stateViewer {
		a.reRender()
	}
	a.ensureVisible()
}

// ── List ──────────────────────────────────────────────────────────────────────

func (a *App) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prev := a.lastKey
	a.lastKey = msg.String()
	st := a.ctl.State()
	visible := a.ctl.Visible()

	switch msg.String() {
	case "q":
		return a, tea.Quit

	case "j", "down":
		return a, a.moveSelection(visible, 1)

	case "k", "up":
		return a, a.moveSelection(visible, -1)

	case "g":
		if prev == "g" && len(visible) > 0 {
			a.lastKey = ""
			return a, a.dispatch("selectNote", "note", visible[0].ID)
		}

	case "G":
		if len(visible) > 0 {
			return a, a.dispatch("selectNote", "note", visible[len(visible)-1].ID)
		}

	case "enter", "l":
		if st.Selected != nil {
			a.state = stateViewer
			a.renderedID = ""
			a.reRender()
		}

	case "e":
		if st.Selected != nil {
			return a, a.cmdOpenEditor(*st.Selected)
		}

	case "n":
		if cmd := a.dispatch(command.ActionNewNote); cmd != nil {
			return a, cmd
		}
		if sel := a.ctl.State().Selected; sel != nil {
			return a, a.cmdOpenEditor(*sel)
		}

	case "/":
		a.state = stateSearch
		a.searchInput.SetValue(st.Filter)
		a.searchInput.Focus()
		a.lastKey = ""
		return a, textinput.Blink

	case "d":
		if st.Selected != nil {
			if !st.ShowTrash {
				return a, a.dispatch("trashNote")
			}
			a.state = stateConfirmDelete
		}

	case "u":
		if st.ShowTrash && st.Selected != nil {
			return a, a.dispatch("restoreNote")
		}

	case "r":
		return a, a.handle(app.LoadNotes())

	case "T":
		if st.ShowTrash {
			return a, a.dispatch("selectAllNotes")
		}
		return a, a.dispatch("selectTrash")

	case "#":
		a.state = stateTagPicker
		a.tagCursor = 0

	case "tab":
		return a, a.dispatch("toggleNavigation")

	case "t":
		if st.Selected != nil {
			a.state = stateEditTags
			a.tagsInput.SetValue(strings.Join(st.Selected.Tags, ", "))
			a.tagsInput.Focus()
			return a, textinput.Blink
		}

	case "p":
		return a, a.dispatch("pinNote")

	case "m":
		return a, a.dispatch("markdownNote")

	case "s":
		return a, a.dispatch("setSortType", "sortType", string(nextSort(st.Sort.Type)))

	case "S":
		return a, a.dispatch("toggleSortOrder")

	case "v":
		return a, a.dispatch("setNoteDisplay", "mode", string(nextMode(st.Settings.NoteDisplay)))

	case "i":
		return a, a.dispatch("toggleNoteInfo")

	case "+":
		return a, a.dispatch("increaseFontSize")

	case "-":
		return a, a.dispatch("decreaseFontSize")

	case "0":
		return a, a.dispatch("resetFontSize")

	case "x":
		a.setStatus("exporting notes...", false)
		return a, a.dispatch(command.ActionExport)

	case ",":
		return a, a.dispatch("showDialog", "dialog", dialog.Settings)

	case "?":
		return a, a.dispatch("showDialog", "dialog", dialog.About)

	case "y":
		if st.Selected != nil {
			return a, a.dispatch("showDialog", "dialog", dialog.Share)
		}
	}

	return a, nil
}

func (a *App) handle(msg any) tea.Cmd {
	if err := a.ctl.Handle(msg); err != nil {
		a.err = err
		return tea.Quit
	}
	a.sync()
	return nil
}

func (a *App) moveSelection(visible []notes.Note, step int) tea.Cmd {
	if len(visible) == 0 {
		return nil
	}
	idx := 0
	if sel := a.ctl.State().Selected; sel != nil {
		idx = min(max(indexOf(visible, sel.ID)+step, 0), len(visible)-1)
	}
	return a.dispatch("selectNote", "note", visible[idx].ID)
}

func indexOf(list []notes.Note, id string) int {
	for i, n := range list {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func nextSort(t filter.SortType) filter.SortType {
	switch t {
	case filter.SortModified:
		return filter.SortCreated
	case filter.SortCreated:
		return filter.SortAlphabetical
	}
	return filter.SortModified
}

func nextMode(m display.Mode) display.Mode {
	switch m {
	case display.Comfy:
		return display.Condensed
	case display.Condensed:
		return display.Expanded
	}
	return display.Comfy
}

// ── Viewer ────────────────────────────────────────────────────────────────────

func (a *App) updateViewer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	prev := a.lastKey
	a.lastKey = msg.String()
	st := a.ctl.State()

	switch msg.String() {
	case "q", "h", "esc":
		a.state = stateList

	case "e":
		if st.Selected != nil {
			return a, a.cmdOpenEditor(*st.Selected)
		}

	case "M":
		mode := app.ModeMarkdown
		if st.EditorMode == app.ModeMarkdown {
			mode = app.ModeEdit
		}
		cmd := a.dispatch("setEditorMode", "mode", string(mode))
		a.renderedID = ""
		a.reRender()
		return a, cmd

	case "i":
		if cmd := a.dispatch("toggleNoteInfo"); cmd != nil {
			return a, cmd
		}
		if a.ctl.State().ShowNoteInfo {
			return a, a.dispatch("noteRevisions")
		}

	case "t":
		if st.Selected != nil {
			a.state = stateEditTags
			a.tagsInput.SetValue(strings.Join(st.Selected.Tags, ", "))
			a.tagsInput.Focus()
			return a, textinput.Blink
		}

	case "d":
		if st.Selected != nil && !st.ShowTrash {
			return a, a.dispatch("trashNote")
		}

	case "y":
		return a, a.dispatch("showDialog", "dialog", dialog.Share)

	case "g":
		if prev == "g" {
			a.viewport.GotoTop()
			a.lastKey = ""
		}

	case "G":
		a.viewport.GotoBottom()

	case "j", "down":
		a.viewport.ScrollDown(1)

	case "k", "up":
		a.viewport.ScrollUp(1)

	case "ctrl+d":
		a.viewport.ScrollDown(a.viewport.Height / 2)

	case "u", "ctrl+u":
		a.viewport.ScrollUp(a.viewport.Height / 2)

	case "ctrl+f", "pgdown":
		a.viewport.ScrollDown(a.viewport.Height)

	case "ctrl+b", "pgup":
		a.viewport.ScrollUp(a.viewport.Height)

	case "}":
		a.jumpParagraph(1)

	case "{":
		a.jumpParagraph(-1)
	}
	return a, nil
}

// ── Search ────────────────────────────────────────────────────────────────────

func (a *App) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = stateList
		a.searchInput.Blur()
		a.searchInput.SetValue("")
		return a, a.dispatch("search", "query", "")

	case "enter":
		a.state = stateList
		a.searchInput.Blur()
		return a, nil

	case "ctrl+n", "down":
		return a, a.moveSelection(a.ctl.Visible(), 1)

	case "ctrl+p", "up":
		return a, a.moveSelection(a.ctl.Visible(), -1)
	}

	var cmd tea.Cmd
	a.searchInput, cmd = a.searchInput.Update(msg)
	if q := a.searchInput.Value(); q != a.ctl.State().Filter {
		if fatal := a.dispatch("search", "query", q); fatal != nil {
			return a, fatal
		}
	}
	return a, cmd
}

// ── Tags ──────────────────────────────────────────────────────────────────────

func (a *App) updateTagPicker(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	tags := a.ctl.State().Tags
	switch msg.String() {
	case "esc", "q", "#":
		a.state = stateList

	case "j", "down":
		if a.tagCursor < len(tags)-1 {
			a.tagCursor++
		}

	case "k", "up":
		if a.tagCursor > 0 {
			a.tagCursor--
		}

	case "K":
		return a, a.swapTag(tags, -1)

	case "J":
		return a, a.swapTag(tags, 1)

	case "a":
		a.state = stateList
		return a, a.dispatch("selectAllNotes")

	case "x":
		if a.tagCursor < len(tags) {
			return a, a.dispatch("trashTag", "tag", tags[a.tagCursor].Name)
		}

	case "enter":
		a.state = stateList
		if a.tagCursor < len(tags) {
			return a, a.dispatch("selectTag", "tag", tags[a.tagCursor].Name)
		}
	}
	return a, nil
}

// swapTag moves the tag under the cursor one place and stores the new order.
func (a *App) swapTag(tags []notes.Tag, step int) tea.Cmd {
	j := a.tagCursor + step
	if a.tagCursor >= len(tags) || j < 0 || j >= len(tags) {
		return nil
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	names[a.tagCursor], names[j] = names[j], names[a.tagCursor]
	a.tagCursor = j
	return a.dispatch("reorderTags", "tags", names)
}

func (a *App) updateEditTags(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.tagsInput.Blur()
		a.state = stateList
		return a, nil

	case "enter":
		a.tagsInput.Blur()
		a.state = stateList
		return a, a.dispatch("updateNoteTags", "tags", splitTags(a.tagsInput.Value()))
	}

	var cmd tea.Cmd
	a.tagsInput, cmd = a.tagsInput.Update(msg)
	return a, cmd
}

func splitTags(s string) []string {
	out := []string{}
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if f = strings.TrimPrefix(strings.TrimSpace(f), "#"); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ── Confirm ───────────────────────────────────────────────────────────────────

func (a *App) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		a.state = stateList
		cmd := a.dispatch("deleteNoteForever")
		if cmd == nil {
			a.setStatus("deleted forever", false)
		}
		return a, cmd
	case "n", "N", "esc", "q":
		a.state = stateList
	}
	return a, nil
}

// ── Dialogs ───────────────────────────────────────────────────────────────────

func (a *App) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	top, _ := dialog.Top(a.ctl.State().Dialogs)
	switch msg.String() {
	case "esc", "q", "enter":
		return a, a.dispatch("closeDialog", "key", top.Key)
	}
	if top.Type != dialog.Settings {
		return a, nil
	}
	switch msg.String() {
	case "t":
		return a, a.dispatch("activateTheme", "theme", nextTheme(a.ctl.State().Settings.Theme))
	case "m":
		return a, a.dispatch("setMarkdown", "enabled", !a.ctl.State().Settings.MarkdownEnabled)
	case "v":
		return a, a.dispatch("setNoteDisplay", "mode", string(nextMode(a.ctl.State().Settings.NoteDisplay)))
	case "+":
		return a, a.dispatch("increaseFontSize")
	case "-":
		return a, a.dispatch("decreaseFontSize")
	}
	return a, nil
}

func nextTheme(t string) string {
	switch t {
	case "system":
		return "light"
	case "light":
		return "dark"
	}
	return "system"
}

// ── Login ─────────────────────────────────────────────────────────────────────

func (a *App) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.signIn == nil {
		if msg.String() == "q" {
			return a, tea.Quit
		}
		return a, nil
	}
	switch msg.String() {
	case "esc":
		return a, tea.Quit
	case "tab", "shift+tab":
		if a.nameInput.Focused() {
			a.nameInput.Blur()
			a.passInput.Focus()
		} else {
			a.passInput.Blur()
			a.nameInput.Focus()
		}
		return a, textinput.Blink
	case "enter":
		name := strings.TrimSpace(a.nameInput.Value())
		if name == "" {
			a.setStatus("account name required", true)
			return a, nil
		}
		return a, a.cmdSignIn(name, a.passInput.Value())
	}

	var cmd tea.Cmd
	if a.nameInput.Focused() {
		a.nameInput, cmd = a.nameInput.Update(msg)
	} else {
		a.passInput, cmd = a.passInput.Update(msg)
	}
	return a, cmd
}

// ── Rendering state ───────────────────────────────────────────────────────────

func (a *App) reRender() {
	st := a.ctl.State()
	sel := st.Selected
	if sel == nil {
		return
	}
	key := fmt.Sprintf("%s/%d/%s/%s/%d", sel.ID, sel.Version, st.EditorMode, st.Settings.Theme, a.viewport.Width)
	if key == a.renderedID {
		return
	}
	a.renderedID = key

	rendered := sel.Content
	if st.EditorMode == app.ModeMarkdown || sel.Markdown() {
		r, err := glamour.NewTermRenderer(
			glamourStyle(st.Settings.Theme),
			glamour.WithWordWrap(max(a.viewport.Width-2, 20)),
		)
		if err == nil {
			if out, err := r.Render(sel.Content); err == nil {
				rendered = out
			}
		}
	}

	// Prepend tag line after glamour render so ANSI codes stay clean.
	if len(sel.Tags) > 0 {
		tagLine := styleTag.Render("tags: #" + strings.Join(sel.Tags, " #"))
		rendered = tagLine + "\n\n" + rendered
	}

	a.renderedLines = strings.Split(rendered, "\n")
	a.viewport.SetContent(rendered)
	a.viewport.GotoTop()
}

// applyTheme pins the adaptive colours when the user picked a theme.
func applyTheme(theme string) {
	switch theme {
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	case "light":
		lipgloss.SetHasDarkBackground(false)
	}
}

func glamourStyle(theme string) glamour.TermRendererOption {
	switch theme {
	case "dark", "light":
		return glamour.WithStandardStyle(theme)
	}
	return glamour.WithAutoStyle()
}

// ensureVisible scrolls the list so the selected note is on screen. Offsets
// are in notes, not rows.
func (a *App) ensureVisible() {
	st := a.ctl.State()
	if st.Selected == nil {
		a.listOffset = 0
		return
	}
	cursor := indexOf(a.ctl.Visible(), st.Selected.ID)
	if cursor < 0 {
		return
	}
	per := a.notesPerPage()
	if cursor < a.listOffset {
		a.listOffset = cursor
	}
	if cursor >= a.listOffset+per {
		a.listOffset = cursor - per + 1
	}
}

func (a *App) notesPerPage() int {
	listH := max(a.height-6, 1)
	return max(listH/a.ctl.Display().Density(), 1)
}

func (a *App) jumpParagraph(direction int) {
	lines := a.renderedLines
	if len(lines) == 0 {
		return
	}
	i := a.viewport.YOffset

	if direction > 0 {
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
		for i < len(lines) && strings.TrimSpace(lines[i]) != "" {
			i++
		}
		for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
			i++
		}
	} else {
		i--
		for i > 0 && strings.TrimSpace(lines[i]) == "" {
			i--
		}
		for i > 0 && strings.TrimSpace(lines[i-1]) != "" {
			i--
		}
	}
	a.viewport.SetYOffset(i)
}

func (a *App) setStatus(msg string, isErr bool) {
	a.statusMsg = msg
	a.statusIsError = isErr
}
