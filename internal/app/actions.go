package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/export"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/selection"
	"github.com/yash-srivastava19/canopy/internal/settings"
)

func (c *Controller) tables() command.Tables {
	return command.Tables{
		Methods: map[string]command.Method{
			"setSortType":        c.setSortType,
			"toggleSortOrder":    func([]json.RawMessage) { c.toggleSortOrder() },
			"activateTheme":      c.activateTheme,
			"increaseFontSize":   func([]json.RawMessage) { c.setFontSize(c.state.Settings.FontSize + 1) },
			"decreaseFontSize":   func([]json.RawMessage) { c.setFontSize(c.state.Settings.FontSize - 1) },
			"resetFontSize":      func([]json.RawMessage) { c.setFontSize(settings.DefaultFontSize) },
			"setNoteDisplay":     c.setNoteDisplay,
			"setMarkdown":        c.setMarkdown,
			"setAccountName":     c.setAccountName,
			"resetAuth":          func([]json.RawMessage) { c.resetAuth() },
			"setAuthorized":      func([]json.RawMessage) { c.checkAuth() },
			"selectAllNotes":     func([]json.RawMessage) { c.selectAllNotes() },
			"selectTrashedNotes": func([]json.RawMessage) { c.selectTrash() },
		},
		Creators: map[string]command.Creator{
			"trashNote":          c.trashNote,
			"restoreNote":        c.restoreNote,
			"deleteNoteForever":  c.deleteNoteForever,
			"selectNote":         c.selectNote,
			"closeNote":          func(command.Command) { c.closeNote() },
			"selectTrash":        func(command.Command) { c.selectTrash() },
			"selectTag":          c.selectTag,
			"search":             c.search,
			"renameTag":          c.renameTag,
			"trashTag":           c.trashTag,
			"reorderTags":        c.reorderTags,
			"editTags":           c.editTags,
			"setEditorMode":      c.setEditorMode,
			"updateNoteContent":  c.updateNoteContent,
			"updateNoteTags":     c.updateNoteTags,
			"pinNote":            c.pinNote,
			"markdownNote":       c.markdownNote,
			"noteRevisions":      c.noteRevisions,
			"showDialog":         c.showDialog,
			"closeDialog":        c.closeDialog,
			"toggleNavigation":   func(command.Command) { c.state.ShowNavigation = !c.state.ShowNavigation },
			"toggleNoteInfo":     func(command.Command) { c.state.ShowNoteInfo = !c.state.ShowNoteInfo },
			"setShouldPrintNote": c.setShouldPrint,
			"setSearchFocus":     c.setSearchFocus,
			"authChanged":        func(command.Command) { c.authChanged() },
		},
		NewNote: c.newNote,
		Export:  c.exportArchive,
	}
}

// setNotes replaces the collection and keeps the selection stable. A
// selected note that drops out of the visible list is replaced by the note
// now at its previous index.
func (c *Controller) setNotes(list []notes.Note) {
	opts := c.filterOptions()
	before := filter.Apply(c.state.Notes, opts)
	c.state.Notes = list

	sel := c.state.Selected
	if sel == nil {
		return
	}
	after := filter.Apply(list, opts)
	if n := selection.Find(after, sel.ID); n != nil {
		c.state.Selected = n
		return
	}
	if selection.Find(before, sel.ID) != nil {
		c.state.PreviousIndex = selection.IndexBefore(before, sel.ID)
		c.state.Selected = selection.Resolve(after, c.state.PreviousIndex)
		return
	}
	// already hidden by the current view; keep it while it exists
	c.state.Selected = selection.Find(list, sel.ID)
}

// noteRef resolves the note a command refers to: a "note" argument holding
// an id or an object with an id, falling back to the selected note.
func (c *Controller) noteRef(cmd command.Command) *notes.Note {
	raw, ok := cmd.Raw("note")
	if !ok {
		raw, ok = cmd.Raw("noteId")
	}
	if !ok {
		if c.state.Selected == nil {
			return nil
		}
		return selection.Find(c.state.Notes, c.state.Selected.ID)
	}

	var id string
	if json.Unmarshal(raw, &id) != nil {
		var obj struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &obj) != nil {
			return nil
		}
		id = obj.ID
	}
	if id == "" {
		return nil
	}
	return selection.Find(c.state.Notes, id)
}

// put writes n and patches the local snapshot with the stored version.
func (c *Controller) put(n notes.Note) (notes.Note, bool) {
	stored, err := c.notes.Put(c.ctx, n)
	if err != nil {
		c.logger.Error("app: save note", "id", n.ID, "err", err)
		return notes.Note{}, false
	}
	c.state.Notes = replaceNote(c.state.Notes, stored)
	if c.state.Selected != nil && c.state.Selected.ID == stored.ID {
		s := stored
		c.state.Selected = &s
	}
	return stored, true
}

// moveOut runs a mutation that takes the note out of the current view and
// selects the note at its previous index afterwards. It reports whether the
// mutation happened.
func (c *Controller) moveOut(n *notes.Note, mutate func(notes.Note) bool) bool {
	opts := c.filterOptions()
	prev := selection.PreviousIndex(c.state.Notes, opts, n.ID)
	c.state.PreviousIndex = prev
	if !mutate(n.Clone()) {
		return false
	}
	c.state.Selected = selection.Resolve(filter.Apply(c.state.Notes, opts), prev)
	return true
}

func (c *Controller) trashNote(cmd command.Command) {
	n := c.noteRef(cmd)
	if n == nil || n.Deleted {
		return
	}
	moved := c.moveOut(n, func(m notes.Note) bool {
		m.Deleted = true
		m.Modified = time.Now().UTC()
		_, ok := c.put(m)
		return ok
	})
	if moved {
		c.telemetry.Record("editor_note_deleted", "id", n.ID)
	}
}

func (c *Controller) restoreNote(cmd command.Command) {
	n := c.noteRef(cmd)
	if n == nil || !n.Deleted {
		return
	}
	moved := c.moveOut(n, func(m notes.Note) bool {
		m.Deleted = false
		m.Modified = time.Now().UTC()
		_, ok := c.put(m)
		return ok
	})
	if moved {
		c.telemetry.Record("editor_note_restored", "id", n.ID)
	}
}

func (c *Controller) deleteNoteForever(cmd command.Command) {
	n := c.noteRef(cmd)
	if n == nil || !n.Deleted {
		return
	}
	moved := c.moveOut(n, func(m notes.Note) bool {
		if err := c.notes.Remove(c.ctx, m.ID); err != nil && !errors.Is(err, bucket.ErrNotFound) {
			c.logger.Error("app: delete note", "id", m.ID, "err", err)
			return false
		}
		c.state.Notes = removeNote(c.state.Notes, m.ID)
		return true
	})
	if moved {
		c.telemetry.Record("editor_note_deleted_forever", "id", n.ID)
	}
}

// newNote creates a note tagged with the selected tag and selects it.
func (c *Controller) newNote(cmd command.Command) {
	if c.state.Auth != auth.StatusAuthorized {
		return
	}
	n := notes.Note{}
	if s, ok := cmd.String("content"); ok {
		n.Content = s
	}
	if c.state.Tag != nil {
		n.Tags = []string{c.state.Tag.Name}
	}
	if c.state.Settings.MarkdownEnabled {
		n.SetSystemTag(notes.SystemMarkdown, true)
	}
	stored, ok := c.put(n)
	if !ok {
		return
	}
	c.state.ShowTrash = false
	c.state.Selected = &stored
	c.state.Revisions = nil
	c.state.EditorMode = ModeEdit
	c.telemetry.Record("list_note_created", "id", stored.ID)
}

func (c *Controller) selectNote(cmd command.Command) {
	n := c.noteRef(cmd)
	if n == nil {
		return
	}
	c.state.Selected = n
	c.state.Revisions = nil
	c.state.ShouldPrint = false
}

func (c *Controller) closeNote() {
	c.state.Selected = nil
	c.state.Revisions = nil
	c.state.PreviousIndex = 0
}

func (c *Controller) selectAllNotes() {
	c.state.Tag = nil
	c.state.ShowTrash = false
	c.dropHiddenSelection()
}

func (c *Controller) selectTrash() {
	c.state.Tag = nil
	c.state.ShowTrash = true
	c.state.Selected = nil
	c.state.EditingTags = false
	c.telemetry.Record("list_trash_viewed")
}

// dropHiddenSelection clears the selection when the current view hides it.
func (c *Controller) dropHiddenSelection() {
	if c.state.Selected == nil {
		return
	}
	if selection.Find(c.Visible(), c.state.Selected.ID) == nil {
		c.state.Selected = nil
	}
}

// tagArg reads a tag name given as a string or as an object with a name.
func tagArg(cmd command.Command, key string) (string, bool) {
	if s, ok := cmd.String(key); ok {
		return s, true
	}
	var obj struct {
		Name string `json:"name"`
	}
	if cmd.Decode(key, &obj) && obj.Name != "" {
		return obj.Name, true
	}
	return "", false
}

func (c *Controller) selectTag(cmd command.Command) {
	name, ok := tagArg(cmd, "tag")
	if !ok {
		return
	}
	t, ok := notes.FindTag(c.state.Tags, name)
	if !ok {
		return
	}
	c.state.Tag = &t
	c.state.ShowTrash = false
	c.dropHiddenSelection()
	c.telemetry.Record("list_tag_viewed")
}

func (c *Controller) search(cmd command.Command) {
	q, ok := cmd.String("query")
	if !ok {
		q, _ = cmd.String("filter")
	}
	c.state.Filter = q
	c.telemetry.Record("list_notes_searched")
}

func (c *Controller) renameTag(cmd command.Command) {
	oldName, ok := tagArg(cmd, "tag")
	if !ok {
		return
	}
	newName, _ := cmd.String("name")
	newName = strings.TrimSpace(newName)
	old, found := notes.FindTag(c.state.Tags, oldName)
	if !found || newName == "" || newName == old.Name {
		return
	}

	renamed := notes.NewTag(newName, old.Index)
	if _, err := c.tags.Put(c.ctx, renamed); err != nil {
		c.logger.Error("app: rename tag", "tag", old.Name, "err", err)
		return
	}
	if renamed.ID != old.ID {
		if err := c.tags.Remove(c.ctx, old.ID); err != nil && !errors.Is(err, bucket.ErrNotFound) {
			c.logger.Error("app: remove renamed tag", "tag", old.Name, "err", err)
		}
	}

	for _, n := range c.state.Notes {
		if !n.HasTag(old.Name) {
			continue
		}
		m := n.Clone()
		for i, t := range m.Tags {
			if strings.EqualFold(t, old.Name) {
				m.Tags[i] = renamed.Name
			}
		}
		c.put(m)
	}
	if c.state.Tag != nil && c.state.Tag.ID == old.ID {
		c.state.Tag = &renamed
	}
}

func (c *Controller) trashTag(cmd command.Command) {
	name, ok := tagArg(cmd, "tag")
	if !ok {
		return
	}
	t, found := notes.FindTag(c.state.Tags, name)
	if !found {
		return
	}
	if err := c.tags.Remove(c.ctx, t.ID); err != nil && !errors.Is(err, bucket.ErrNotFound) {
		c.logger.Error("app: remove tag", "tag", t.Name, "err", err)
		return
	}
	for _, n := range c.state.Notes {
		if !n.HasTag(t.Name) {
			continue
		}
		m := n.Clone()
		m.Tags = without(m.Tags, t.Name)
		c.put(m)
	}
	if c.state.Tag != nil && c.state.Tag.ID == t.ID {
		c.state.Tag = nil
	}
}

func without(tags []string, name string) []string {
	out := tags[:0]
	for _, t := range tags {
		if !strings.EqualFold(t, name) {
			out = append(out, t)
		}
	}
	return out
}

// reorderTags stores the rank given by the order of the "tags" argument.
func (c *Controller) reorderTags(cmd command.Command) {
	var names []string
	if !cmd.Decode("tags", &names) {
		var objs []notes.Tag
		if !cmd.Decode("tags", &objs) {
			return
		}
		for _, o := range objs {
			names = append(names, o.Name)
		}
	}
	for i, name := range names {
		t, ok := notes.FindTag(c.state.Tags, name)
		if !ok || t.Index == i {
			continue
		}
		t.Index = i
		if _, err := c.tags.Put(c.ctx, t); err != nil {
			c.logger.Error("app: reorder tag", "tag", t.Name, "err", err)
		}
	}
}

func (c *Controller) editTags(cmd command.Command) {
	if b, ok := cmd.Bool("editing"); ok {
		c.state.EditingTags = b
		return
	}
	c.state.EditingTags = !c.state.EditingTags
}

func (c *Controller) setEditorMode(cmd command.Command) {
	mode, _ := cmd.String("mode")
	switch EditorMode(mode) {
	case ModeEdit, ModeMarkdown:
		c.state.EditorMode = EditorMode(mode)
	}
}

func (c *Controller) updateNoteContent(cmd command.Command) {
	n := c.noteRef(cmd)
	content, ok := cmd.String("content")
	if n == nil || !ok || content == n.Content {
		return
	}
	m := n.Clone()
	m.Content = content
	m.Modified = time.Now().UTC()
	c.put(m)
}

func (c *Controller) updateNoteTags(cmd command.Command) {
	n := c.noteRef(cmd)
	var names []string
	if n == nil || !cmd.Decode("tags", &names) {
		return
	}
	var clean []string
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || containsFold(clean, name) {
			continue
		}
		clean = append(clean, name)
	}

	m := n.Clone()
	m.Tags = clean
	m.Modified = time.Now().UTC()
	if _, ok := c.put(m); !ok {
		return
	}
	for _, name := range clean {
		if _, ok := notes.FindTag(c.state.Tags, name); ok {
			continue
		}
		t := notes.NewTag(name, len(c.state.Tags))
		if _, err := c.tags.Put(c.ctx, t); err != nil {
			c.logger.Error("app: create tag", "tag", name, "err", err)
			continue
		}
		c.state.Tags = append(c.state.Tags, t)
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// setSystemFlag sets a system tag from a bool argument, toggling when the
// argument is absent.
func (c *Controller) setSystemFlag(cmd command.Command, key, tag string) {
	n := c.noteRef(cmd)
	if n == nil {
		return
	}
	on, ok := cmd.Bool(key)
	if !ok {
		on = !n.HasSystemTag(tag)
	}
	if on == n.HasSystemTag(tag) {
		return
	}
	m := n.Clone()
	m.SetSystemTag(tag, on)
	c.put(m)
}

func (c *Controller) pinNote(cmd command.Command) {
	c.setSystemFlag(cmd, "pin", notes.SystemPinned)
}

func (c *Controller) markdownNote(cmd command.Command) {
	c.setSystemFlag(cmd, "markdown", notes.SystemMarkdown)
}

func (c *Controller) noteRevisions(cmd command.Command) {
	n := c.noteRef(cmd)
	h, ok := c.notes.(bucket.Historian[notes.Note])
	if n == nil || !ok {
		return
	}
	revs, err := h.Revisions(c.ctx, n.ID)
	if err != nil {
		c.logger.Error("app: note revisions", "id", n.ID, "err", err)
		return
	}
	c.state.Revisions = revs
	c.telemetry.Record("editor_versions_accessed")
}

// dialogArg reads the dialog a showDialog command names, as a kind name or
// as an object.
func dialogArg(cmd command.Command) (dialog.Dialog, bool) {
	var d dialog.Dialog
	if kind, ok := cmd.String("dialog"); ok {
		d.Type = kind
	} else if !cmd.Decode("dialog", &d) {
		return d, false
	}
	return d, d.Type != ""
}

// showDialog opens a dialog. Kinds the registry knows take their modal and
// single flags from it. An unknown kind is still opened: from the local host
// it is a defect and Dialogs fails on it. Payloads from the transport are
// screened in Handle before they get here.
func (c *Controller) showDialog(cmd command.Command) {
	d, ok := dialogArg(cmd)
	if !ok {
		return
	}
	if spec, err := c.registry.Lookup(d.Type); err == nil {
		d.Modal, d.Single = spec.Modal, spec.Single
	}
	if d.Type == dialog.Share && d.Params == nil && c.state.Selected != nil {
		d.Params = map[string]any{"note": c.state.Selected.ID}
	}
	d.Key = c.state.NextDialogKey
	var added bool
	if c.state.Dialogs, added = dialog.Show(c.state.Dialogs, d); added {
		c.state.NextDialogKey++
	}
}

func (c *Controller) closeDialog(cmd command.Command) {
	key, ok := cmd.Int("key")
	if !ok {
		top, open := dialog.Top(c.state.Dialogs)
		if !open {
			return
		}
		key = top.Key
	}
	c.state.Dialogs = dialog.Close(c.state.Dialogs, key)
}

func (c *Controller) setShouldPrint(cmd command.Command) {
	b, ok := cmd.Bool("shouldPrint")
	c.state.ShouldPrint = b || !ok
}

func (c *Controller) setSearchFocus(cmd command.Command) {
	b, ok := cmd.Bool("searchFocus")
	c.state.SearchFocus = b || !ok
}

// authChanged clears account data before the handler decides the new
// status.
func (c *Controller) authChanged() {
	c.state.Notes = nil
	c.state.Tags = nil
	c.state.Dialogs = nil
	c.state.Selected = nil
	c.checkAuth()
}

func (c *Controller) setSortType(args []json.RawMessage) {
	s, ok := command.StringAt(args, 0)
	if !ok {
		return
	}
	t := filter.ParseSortType(s)
	c.state.Sort.Type = t
	c.updateSettings(func(st *settings.Settings) { st.SortType = t })
	c.loadNotes()
}

func (c *Controller) toggleSortOrder() {
	c.state.Sort.Reversed = !c.state.Sort.Reversed
	r := c.state.Sort.Reversed
	c.updateSettings(func(st *settings.Settings) { st.SortReversed = r })
	c.loadNotes()
}

func (c *Controller) activateTheme(args []json.RawMessage) {
	theme, ok := command.StringAt(args, 0)
	if !ok || !settings.ValidTheme(theme) {
		return
	}
	c.updateSettings(func(st *settings.Settings) { st.Theme = theme })
}

func (c *Controller) setFontSize(size int) {
	size = settings.ClampFont(size)
	if size == c.state.Settings.FontSize {
		return
	}
	c.updateSettings(func(st *settings.Settings) { st.FontSize = size })
}

func (c *Controller) setNoteDisplay(args []json.RawMessage) {
	s, ok := command.StringAt(args, 0)
	if !ok {
		return
	}
	mode := display.ParseMode(s)
	c.updateSettings(func(st *settings.Settings) { st.NoteDisplay = mode })
}

func (c *Controller) setMarkdown(args []json.RawMessage) {
	b, ok := command.BoolAt(args, 0)
	if !ok {
		return
	}
	c.updateSettings(func(st *settings.Settings) { st.MarkdownEnabled = b })
}

func (c *Controller) setAccountName(args []json.RawMessage) {
	name, ok := command.StringAt(args, 0)
	if !ok {
		return
	}
	c.updateSettings(func(st *settings.Settings) { st.AccountName = name })
}

// exportArchive runs off the controller goroutine. It reads the bucket
// only, never State.
func (c *Controller) exportArchive(ctx context.Context, cmd command.Command) error {
	var path string
	for _, key := range []string{"filename", "path"} {
		if p, ok := cmd.String(key); ok && p != "" {
			path = p
			break
		}
	}
	if path == "" {
		path = c.exportPath
	}
	if path == "" {
		return errors.New("app: no export path")
	}
	path = filepath.Clean(path)

	list, err := c.notes.List(ctx)
	if err != nil {
		return fmt.Errorf("app: export list: %w", err)
	}
	data, err := export.Archive(ctx, list)
	if err != nil {
		return err
	}
	if err := export.WriteFile(path, data); err != nil {
		return err
	}
	c.logger.Info("app: exported notes", "path", path, "count", len(list))
	if err := c.transport.Send("exportComplete", map[string]any{"path": path, "count": len(list)}); err != nil {
		c.logger.Warn("app: send exportComplete", "err", err)
	}
	return nil
}
