package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/settings"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeAuth struct {
	mu      sync.Mutex
	ok      bool
	account string
	signals chan auth.Signal
}

func (f *fakeAuth) IsAuthorized() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ok, nil
}

func (f *fakeAuth) Account() string             { return f.account }
func (f *fakeAuth) Signals() <-chan auth.Signal { return f.signals }

func (f *fakeAuth) set(ok bool) {
	f.mu.Lock()
	f.ok = ok
	f.mu.Unlock()
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []string
	cmds chan []byte
}

func (f *fakeTransport) Commands() <-chan []byte { return f.cmds }
func (f *fakeTransport) Close() error            { return nil }
func (f *fakeTransport) Send(channel string, v any) error {
	f.mu.Lock()
	f.sent = append(f.sent, channel)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) count(channel string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s == channel {
			n++
		}
	}
	return n
}

type memSettings struct {
	saved []settings.Settings
}

func (m *memSettings) Load() (settings.Settings, error) { return settings.Defaults(), nil }
func (m *memSettings) Save(s settings.Settings) error {
	m.saved = append(m.saved, s)
	return nil
}

type harness struct {
	c     *Controller
	notes *bucket.Memory[notes.Note]
	tags  *bucket.Memory[notes.Tag]
	auth  *fakeAuth
	tr    *fakeTransport
	store *memSettings
}

var base = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func seedNotes(ids ...string) []notes.Note {
	out := make([]notes.Note, len(ids))
	for i, id := range ids {
		out[i] = notes.Note{
			ID:       id,
			Content:  "# " + id,
			Created:  base.Add(time.Duration(i) * time.Minute),
			Modified: base.Add(time.Duration(i) * time.Minute),
			Version:  1,
		}
	}
	return out
}

func newHarness(t *testing.T, seed []notes.Note, tags ...notes.Tag) *harness {
	t.Helper()
	h := &harness{
		notes: bucket.NewNoteMemory(),
		tags:  bucket.NewMemory[notes.Tag](nil, nil),
		auth:  &fakeAuth{ok: true, account: "tester", signals: make(chan auth.Signal, 4)},
		tr:    &fakeTransport{cmds: make(chan []byte, 4)},
		store: &memSettings{},
	}
	h.notes.Seed(seed...)
	h.tags.Seed(tags...)

	c, err := New(Options{
		Notes:      h.notes,
		Tags:       h.tags,
		Auth:       h.auth,
		Transport:  h.tr,
		Settings:   h.store,
		ExportPath: filepath.Join(t.TempDir(), "export.zip"),
		Logger:     quiet,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.c = c

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = c.Shutdown()
	})
	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	h.settle(t)
	return h
}

// settle handles inbox messages until the controller goes quiet.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	for {
		select {
		case m := <-h.c.Inbox():
			if err := h.c.Handle(m); err != nil {
				t.Fatalf("Handle: %v", err)
			}
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}

func (h *harness) do(t *testing.T, action string, kv ...any) {
	t.Helper()
	if err := h.c.Dispatch(command.New(action, kv...)); err != nil {
		t.Fatalf("%s: %v", action, err)
	}
}

func visibleIDs(c *Controller) string {
	s := ""
	for _, n := range c.Visible() {
		s += n.ID
	}
	return s
}

func selectedID(c *Controller) string {
	if sel := c.State().Selected; sel != nil {
		return sel.ID
	}
	return ""
}

func TestInit_authorizesAndLoads(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"), notes.NewTag("work", 0))
	st := h.c.State()
	if st.Auth != auth.StatusAuthorized {
		t.Errorf("Auth: got %s", st.Auth)
	}
	if len(st.Notes) != 2 || len(st.Tags) != 1 {
		t.Errorf("loaded %d notes, %d tags", len(st.Notes), len(st.Tags))
	}
	if h.tr.count("settingsUpdate") < 1 {
		t.Error("settingsUpdate should be sent on mount")
	}
	if st.Settings.AccountName != "tester" {
		t.Errorf("account name: got %q", st.Settings.AccountName)
	}
}

func TestTrashMiddleNote(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B", "C"))
	h.do(t, "setSortType", "sortType", "creationDate")
	h.do(t, "selectNote", "note", "B")
	if visibleIDs(h.c) != "ABC" || selectedID(h.c) != "B" {
		t.Fatalf("setup: visible %q selected %q", visibleIDs(h.c), selectedID(h.c))
	}

	h.do(t, "trashNote")
	if h.c.State().PreviousIndex != 0 {
		t.Errorf("PreviousIndex: got %d", h.c.State().PreviousIndex)
	}
	if visibleIDs(h.c) != "AC" {
		t.Errorf("visible: got %q", visibleIDs(h.c))
	}
	if selectedID(h.c) != "A" {
		t.Errorf("selected: got %q", selectedID(h.c))
	}

	// the bucket's update event and the reload must not move it
	h.settle(t)
	if selectedID(h.c) != "A" || visibleIDs(h.c) != "AC" {
		t.Errorf("after reload: visible %q selected %q", visibleIDs(h.c), selectedID(h.c))
	}
	stored, _ := h.notes.Get(context.Background(), "B")
	if !stored.Deleted {
		t.Error("bucket copy should be trashed")
	}
}

func TestTrashLastNoteClears(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectNote", "note", map[string]string{"id": "A"})
	h.do(t, "trashNote")
	if h.c.State().Selected != nil {
		t.Errorf("selection should be nil, got %v", selectedID(h.c))
	}
}

func TestRestoreAndDeleteForever(t *testing.T) {
	seed := seedNotes("A", "B", "C")
	for i := range seed {
		seed[i].Deleted = true
	}
	h := newHarness(t, seed)
	h.do(t, "setSortType", "sortType", "creationDate")
	h.do(t, "selectTrash")
	if visibleIDs(h.c) != "ABC" {
		t.Fatalf("trash view: got %q", visibleIDs(h.c))
	}

	h.do(t, "selectNote", "note", "C")
	h.do(t, "restoreNote")
	if visibleIDs(h.c) != "AB" || selectedID(h.c) != "B" {
		t.Errorf("after restore: visible %q selected %q", visibleIDs(h.c), selectedID(h.c))
	}

	h.do(t, "deleteNoteForever", "note", "A")
	if visibleIDs(h.c) != "B" || selectedID(h.c) != "B" {
		t.Errorf("after delete: visible %q selected %q", visibleIDs(h.c), selectedID(h.c))
	}
	if _, err := h.notes.Get(context.Background(), "A"); !errors.Is(err, bucket.ErrNotFound) {
		t.Errorf("A should be gone: %v", err)
	}

	// preconditions: restoring a live note or deleting one forever is a no-op
	h.settle(t)
	h.do(t, "selectAllNotes")
	before := h.c.State().Clone()
	h.do(t, "deleteNoteForever", "note", "C")
	h.do(t, "restoreNote", "note", "C")
	if !reflect.DeepEqual(before, h.c.State()) {
		t.Error("precondition failures should not change state")
	}
}

func TestSelectTagWithoutMatches(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"), notes.NewTag("work", 0))
	h.do(t, "selectNote", "note", "A")
	h.do(t, "selectTag", "tag", "work")

	st := h.c.State()
	if st.Tag == nil || st.Tag.Name != "work" {
		t.Fatalf("tag: got %v", st.Tag)
	}
	if len(h.c.Visible()) != 0 {
		t.Errorf("visible: got %q", visibleIDs(h.c))
	}
	if st.Selected != nil {
		t.Errorf("selected should be nil, got %s", st.Selected.ID)
	}
}

func TestSelectTag_unknownIsNoop(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	before := h.c.State().Clone()
	h.do(t, "selectTag", "tag", "missing")
	if !reflect.DeepEqual(before, h.c.State()) {
		t.Error("unknown tag should not change state")
	}
}

func TestUnknownActionLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"))
	h.do(t, "selectNote", "note", "B")
	before := h.c.State().Clone()

	for _, payload := range []string{
		`{"action":"doesNotExist"}`,
		`{"action":null}`,
		`{"noAction":true}`,
		`[1,2,3]`,
		`garbage`,
	} {
		if err := h.c.Handle(CommandPayload([]byte(payload))); err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
	}
	if !reflect.DeepEqual(before, h.c.State()) {
		t.Error("state changed")
	}
}

func TestSettingsDialogSingleInstance(t *testing.T) {
	h := newHarness(t, nil)
	d := map[string]any{"type": "Settings", "modal": true, "single": true}
	h.do(t, "showDialog", "dialog", d)
	h.do(t, "showDialog", "dialog", d)

	open, err := h.c.Dialogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(open) != 1 || open[0].Type != dialog.Settings {
		t.Errorf("dialogs: got %v", open)
	}

	h.do(t, "closeDialog")
	if len(h.c.State().Dialogs) != 0 {
		t.Error("closeDialog should close the top dialog")
	}
}

func TestUnregisteredDialogIsFatal(t *testing.T) {
	h := newHarness(t, nil)
	err := h.c.Dispatch(command.New("showDialog", "dialog", "Bogus"))
	if !errors.Is(err, dialog.ErrUnregistered) {
		t.Fatalf("Dispatch: got %v", err)
	}
	if _, err := h.c.Dialogs(); !errors.Is(err, dialog.ErrUnregistered) {
		t.Errorf("Dialogs: got %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	h.c.inbox <- LoadNotes()
	if err := h.c.Run(ctx); !errors.Is(err, dialog.ErrUnregistered) {
		t.Errorf("Run: got %v", err)
	}
}

func TestUnknownDialogFromTransportIsDropped(t *testing.T) {
	h := newHarness(t, nil)
	for _, payload := range []string{
		`{"action":"showDialog","dialog":"Bogus"}`,
		`{"action":"showDialog","dialog":{"type":"Bogus","modal":true}}`,
	} {
		if err := h.c.Handle(CommandPayload([]byte(payload))); err != nil {
			t.Fatalf("%s: %v", payload, err)
		}
	}
	if len(h.c.State().Dialogs) != 0 {
		t.Errorf("dialogs: %v", h.c.State().Dialogs)
	}
	if err := h.c.Handle(CommandPayload([]byte(`{"action":"showDialog","dialog":"About"}`))); err != nil {
		t.Fatal(err)
	}
	if len(h.c.State().Dialogs) != 1 {
		t.Error("registered kinds from the transport should still open")
	}
	if err := h.c.Handle(LoadNotes()); err != nil {
		t.Errorf("host should keep running: %v", err)
	}
}

func TestNewNoteInheritsTag(t *testing.T) {
	h := newHarness(t, seedNotes("A"), notes.NewTag("work", 0))
	h.do(t, "selectTag", "tag", "work")

	h.do(t, "newNote", "content", "hello")
	st := h.c.State()
	if st.Selected == nil || st.Selected.Content != "hello" || !st.Selected.HasTag("work") {
		t.Fatalf("selected: %+v", st.Selected)
	}
	if !selectionVisible(h.c) {
		t.Error("new note should be visible")
	}
	h.settle(t)
	if got := selectedID(h.c); got != st.Selected.ID {
		t.Errorf("selection moved after reload: %q", got)
	}
}

func TestNewNoteLeavesTrash(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectTrash")
	h.do(t, "newNote")
	if st := h.c.State(); st.ShowTrash || st.Selected == nil {
		t.Errorf("trash %v, selected %v", st.ShowTrash, st.Selected)
	}
	if !selectionVisible(h.c) {
		t.Error("new note should be visible")
	}
}

func selectionVisible(c *Controller) bool {
	id := selectedID(c)
	for _, n := range c.Visible() {
		if n.ID == id {
			return true
		}
	}
	return false
}

func TestSearchKeepsSelection(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"))
	h.do(t, "selectNote", "note", "A")
	h.do(t, "search", "query", "b")
	if visibleIDs(h.c) != "B" {
		t.Errorf("visible: got %q", visibleIDs(h.c))
	}
	if selectedID(h.c) != "A" {
		t.Errorf("search should keep the selection, got %q", selectedID(h.c))
	}
}

func TestRemoveEventReloadIsIdempotent(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B", "C"))
	h.do(t, "setSortType", "sortType", "creationDate")
	h.do(t, "selectNote", "note", "C")

	if err := h.notes.Remove(context.Background(), "C"); err != nil {
		t.Fatal(err)
	}
	h.settle(t)
	once := h.c.State().Clone()
	if selectedID(h.c) != "B" {
		t.Errorf("selection after external remove: got %q", selectedID(h.c))
	}

	if err := h.c.Handle(LoadNotes()); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once, h.c.State()) {
		t.Error("second reload changed state")
	}
}

func TestIndexingUpdatePatchesOnlyNotes(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectNote", "note", "A")
	before := h.c.State().Clone()

	changed := before.Notes[0].Clone()
	changed.Content = "indexed"
	if err := h.c.Handle(noteUpdatedMsg{id: "A", data: &changed, isIndexing: true}); err != nil {
		t.Fatal(err)
	}
	st := h.c.State()
	if st.Notes[0].Content != "indexed" {
		t.Errorf("note not patched: %q", st.Notes[0].Content)
	}
	if st.Selected.Content != before.Selected.Content {
		t.Error("indexing update should not touch the selection")
	}
}

func TestContentUpdateSurvivesReload(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectNote", "note", "A")

	// the bucket still holds the old content when the event arrives
	ahead := h.c.State().Notes[0].Clone()
	ahead.Content = "# A\n\ntyped"
	ahead.Version = 2
	msg := noteUpdatedMsg{id: "A", data: &ahead, patch: map[string]any{"content": ahead.Content}}
	if err := h.c.Handle(msg); err != nil {
		t.Fatal(err)
	}
	st := h.c.State()
	if st.Selected.Content != ahead.Content {
		t.Errorf("selected content: got %q", st.Selected.Content)
	}
	if st.Notes[0].Content != "# A" {
		t.Errorf("notes should hold the bucket snapshot, got %q", st.Notes[0].Content)
	}

	stale := ahead.Clone()
	stale.Content = "old"
	stale.Version = 0
	if err := h.c.Handle(noteUpdatedMsg{id: "A", data: &stale, patch: map[string]any{"content": "old"}}); err != nil {
		t.Fatal(err)
	}
	if h.c.State().Selected.Content == "old" {
		t.Error("an older event must not overwrite the selection")
	}
}

func TestContentUpdatePatchesSelected(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectNote", "note", "A")
	h.do(t, "updateNoteContent", "content", "# A\n\nmore")
	h.settle(t)
	if h.c.State().Selected.Content != "# A\n\nmore" {
		t.Errorf("selected content: %q", h.c.State().Selected.Content)
	}
}

func TestAuthTransitions(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.do(t, "selectNote", "note", "A")
	h.do(t, "showDialog", "dialog", "About")

	h.auth.set(false)
	h.auth.signals <- auth.SignalUnauthorized
	h.settle(t)
	st := h.c.State()
	if st.Auth != auth.StatusUnauthorized {
		t.Fatalf("Auth: got %s", st.Auth)
	}
	if st.Notes != nil || st.Selected != nil || len(st.Dialogs) != 0 {
		t.Error("reset should clear account data")
	}

	// events while signed out are ignored
	if _, err := h.notes.Put(context.Background(), notes.Note{Content: "x"}); err != nil {
		t.Fatal(err)
	}
	h.settle(t)
	if h.c.State().Notes != nil {
		t.Error("notes loaded while unauthorized")
	}

	h.auth.set(true)
	h.do(t, "authChanged")
	if h.c.State().Auth != auth.StatusAuthorized || len(h.c.State().Notes) != 2 {
		t.Errorf("after re-auth: %s with %d notes", h.c.State().Auth, len(h.c.State().Notes))
	}
}

func TestNilAuthClientFailsClosed(t *testing.T) {
	c, err := New(Options{Notes: bucket.NewNoteMemory(), Tags: bucket.NewMemory[notes.Tag](nil, nil), Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := c.Init(ctx); err != nil {
		t.Fatal(err)
	}
	defer c.Shutdown()
	if c.State().Auth != auth.StatusUnauthorized {
		t.Errorf("got %s", c.State().Auth)
	}
}

func TestToolbarOutsideClick(t *testing.T) {
	h := newHarness(t, nil)
	h.do(t, "toggleNavigation")
	h.do(t, "showDialog", "dialog", "About")

	h.c.ToolbarOutsideClick(false)
	if !h.c.State().ShowNavigation {
		t.Error("open dialogs take priority")
	}
	h.do(t, "closeDialog")
	h.c.ToolbarOutsideClick(true)
	if !h.c.State().ShowNavigation {
		t.Error("click inside navigation should keep it open")
	}
	h.c.ToolbarOutsideClick(false)
	if h.c.State().ShowNavigation {
		t.Error("click outside navigation should close it")
	}
}

func TestSettingsMethods(t *testing.T) {
	h := newHarness(t, nil)
	sent := h.tr.count("settingsUpdate")

	h.do(t, "increaseFontSize")
	h.do(t, "activateTheme", "theme", "dark")
	h.do(t, "activateTheme", "theme", "neon")
	h.do(t, "setNoteDisplay", "mode", "condensed")
	h.do(t, "toggleSortOrder")

	st := h.c.State().Settings
	if st.FontSize != settings.DefaultFontSize+1 || st.Theme != "dark" || !st.SortReversed {
		t.Errorf("settings: %+v", st)
	}
	if h.c.Display().Density() != 1 {
		t.Errorf("display density: got %d", h.c.Display().Density())
	}
	if !h.c.State().Sort.Reversed {
		t.Error("sort order should follow settings")
	}
	if got := h.tr.count("settingsUpdate") - sent; got != 4 {
		t.Errorf("settingsUpdate sends: got %d", got)
	}
	if len(h.store.saved) == 0 || h.store.saved[len(h.store.saved)-1] != st {
		t.Error("settings should be persisted")
	}
}

func TestTagActions(t *testing.T) {
	seed := seedNotes("A", "B")
	seed[0].Tags = []string{"work"}
	h := newHarness(t, seed, notes.NewTag("work", 0), notes.NewTag("home", 1))
	ctx := context.Background()

	h.do(t, "updateNoteTags", "note", "B", "tags", []string{"home", "new", "NEW"})
	h.settle(t)
	b, _ := h.notes.Get(ctx, "B")
	if len(b.Tags) != 2 || b.Tags[1] != "new" {
		t.Errorf("B tags: %v", b.Tags)
	}
	if _, err := h.tags.Get(ctx, "new"); err != nil {
		t.Errorf("new tag should be created: %v", err)
	}

	h.do(t, "selectTag", "tag", "work")
	h.do(t, "renameTag", "tag", "work", "name", "job")
	h.settle(t)
	a, _ := h.notes.Get(ctx, "A")
	if !a.HasTag("job") || a.HasTag("work") {
		t.Errorf("A tags after rename: %v", a.Tags)
	}
	if st := h.c.State(); st.Tag == nil || st.Tag.Name != "job" {
		t.Errorf("selected tag should follow rename: %v", st.Tag)
	}

	h.do(t, "reorderTags", "tags", []string{"new", "home", "job"})
	h.settle(t)
	if tags := h.c.State().Tags; len(tags) != 3 || tags[0].Name != "new" || tags[2].Name != "job" {
		t.Errorf("tag order: %v", tags)
	}

	h.do(t, "trashTag", "tag", "job")
	h.settle(t)
	a, _ = h.notes.Get(ctx, "A")
	if a.HasTag("job") || h.c.State().Tag != nil {
		t.Errorf("trashTag: tags %v, selected %v", a.Tags, h.c.State().Tag)
	}
}

func TestNoteFlagsAndRevisions(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"))
	h.do(t, "selectNote", "note", "A")
	h.do(t, "pinNote")
	h.do(t, "markdownNote", "markdown", true)
	h.settle(t)

	if visibleIDs(h.c)[0] != 'A' {
		t.Errorf("pinned note should sort first: %q", visibleIDs(h.c))
	}
	sel := h.c.State().Selected
	if !sel.Pinned() || !sel.Markdown() {
		t.Errorf("flags: %v", sel.SystemTags)
	}

	h.do(t, "noteRevisions")
	if revs := h.c.State().Revisions; len(revs) != 2 {
		t.Errorf("revisions: got %d", len(revs))
	}

	h.do(t, "setEditorMode", "mode", "markdown")
	h.do(t, "setEditorMode", "mode", "bogus")
	h.do(t, "setShouldPrintNote")
	h.do(t, "setSearchFocus", "searchFocus", false)
	h.do(t, "toggleNoteInfo")
	h.do(t, "editTags")
	st := h.c.State()
	if st.EditorMode != ModeMarkdown || !st.ShouldPrint || st.SearchFocus || !st.ShowNoteInfo || !st.EditingTags {
		t.Errorf("view flags: %+v", st)
	}

	h.do(t, "closeNote")
	if h.c.State().Selected != nil {
		t.Error("closeNote")
	}
}

func TestExportViaCommand(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"))
	path := filepath.Join(t.TempDir(), "out.zip")
	if err := h.c.Handle(CommandPayload([]byte(fmt.Sprintf(`{"action":"exportZipArchive","path":%q}`, path)))); err != nil {
		t.Fatal(err)
	}
	h.c.router.Wait()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("archive not written: %v", err)
	}
	if h.tr.count("exportComplete") != 1 {
		t.Error("exportComplete not sent")
	}

	named := filepath.Join(t.TempDir(), "named.zip")
	if err := h.c.Handle(CommandPayload([]byte(fmt.Sprintf(`{"action":"exportZipArchive","filename":%q,"path":%q}`, named, path+".ignored")))); err != nil {
		t.Fatal(err)
	}
	h.c.router.Wait()
	if _, err := os.Stat(named); err != nil {
		t.Errorf("filename not honoured: %v", err)
	}
	if _, err := os.Stat(path + ".ignored"); err == nil {
		t.Error("filename should win over path")
	}
}

func TestExportDefaultPath(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	if err := h.c.Handle(CommandPayload([]byte(`{"action":"exportZipArchive"}`))); err != nil {
		t.Fatal(err)
	}
	h.c.router.Wait()
	if _, err := os.Stat(h.c.exportPath); err != nil {
		t.Errorf("default archive not written: %v", err)
	}
}

func TestTransportCommandsReachController(t *testing.T) {
	h := newHarness(t, seedNotes("A"))
	h.tr.cmds <- []byte(`{"action":"toggleNavigation"}`)
	h.settle(t)
	if !h.c.State().ShowNavigation {
		t.Error("command from transport not applied")
	}
}

type failingPuts struct {
	bucket.Bucket[notes.Note]
}

func (failingPuts) Put(context.Context, notes.Note) (notes.Note, error) {
	return notes.Note{}, errors.New("disk full")
}

func TestFailedTrashIsNotRecorded(t *testing.T) {
	h := newHarness(t, seedNotes("A", "B"))
	h.do(t, "selectNote", "note", "B")
	h.c.notes = failingPuts{h.notes}

	h.do(t, "trashNote")
	if got := h.c.telemetry.Count("editor_note_deleted"); got != 0 {
		t.Errorf("recorded %d deletions for a failed write", got)
	}
	if selectedID(h.c) != "B" || len(h.c.Visible()) != 2 {
		t.Errorf("failed trash moved the note: selected %q, visible %q", selectedID(h.c), visibleIDs(h.c))
	}

	h.c.notes = h.notes
	h.do(t, "trashNote")
	if got := h.c.telemetry.Count("editor_note_deleted"); got != 1 {
		t.Errorf("deletions recorded: got %d", got)
	}
}

func TestAnalyticsEvents(t *testing.T) {
	h := newHarness(t, seedNotes("A"), notes.NewTag("work", 0))
	h.do(t, "selectTag", "tag", "work")
	h.do(t, "search", "query", "a")
	h.do(t, "selectTrash")
	h.do(t, "selectAllNotes")
	h.do(t, "selectNote", "note", "A")
	h.do(t, "noteRevisions")
	for _, event := range []string{
		"application_opened",
		"list_tag_viewed",
		"list_notes_searched",
		"list_trash_viewed",
		"editor_versions_accessed",
	} {
		if h.c.telemetry.Count(event) != 1 {
			t.Errorf("%s: recorded %d times", event, h.c.telemetry.Count(event))
		}
	}
}

func TestNewRejectsMissingBuckets(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error")
	}
}

// authorizedController builds a controller without subscriptions so a
// property run stays synchronous.
func authorizedController(t *rapid.T, seed []notes.Note) *Controller {
	nb := bucket.NewNoteMemory()
	nb.Seed(seed...)
	c, err := New(Options{
		Notes:  nb,
		Tags:   bucket.NewMemory[notes.Tag](nil, nil),
		Auth:   &fakeAuth{ok: true},
		Logger: quiet,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.checkAuth()
	return c
}

func testSelection_Properties(t *rapid.T) {
	n := rapid.IntRange(1, 8).Draw(t, "n")
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("n%d", i)
	}
	c := authorizedController(t, seedNotes(ids...))

	steps := rapid.IntRange(1, 30).Draw(t, "steps")
	for i := 0; i < steps; i++ {
		switch rapid.IntRange(0, 5).Draw(t, "op") {
		case 0:
			visible := c.Visible()
			if len(visible) == 0 {
				continue
			}
			n := rapid.SampledFrom(visible).Draw(t, "note")
			c.router.Dispatch(context.Background(), command.New("selectNote", "note", n.ID))
		case 1:
			c.router.Dispatch(context.Background(), command.New("trashNote"))
		case 2:
			c.router.Dispatch(context.Background(), command.New("restoreNote"))
		case 3:
			c.router.Dispatch(context.Background(), command.New("selectTrash"))
		case 4:
			c.router.Dispatch(context.Background(), command.New("selectAllNotes"))
		case 5:
			c.router.Dispatch(context.Background(), command.New("deleteNoteForever"))
		}

		st := c.State()
		if st.PreviousIndex < 0 {
			t.Fatalf("negative PreviousIndex")
		}
		if sel := st.Selected; sel != nil && sel.Deleted != st.ShowTrash {
			t.Fatalf("selection %s (deleted=%v) in view trash=%v", sel.ID, sel.Deleted, st.ShowTrash)
		}
	}
}

func TestSelection_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSelection_Properties)
}
