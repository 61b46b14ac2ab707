package app

import (
	"slices"

	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/settings"
)

// EditorMode is how the selected note is shown.
type EditorMode string

const (
	ModeEdit     EditorMode = "edit"
	ModeMarkdown EditorMode = "markdown"
)

// State is everything the renderers need. Notes and Tags are snapshots of
// the buckets; the controller never edits note content in place.
type State struct {
	Notes []notes.Note
	Tags  []notes.Tag

	Selected      *notes.Note
	Tag           *notes.Tag // tag filter
	Filter        string     // search query
	Sort          filter.Sort
	PreviousIndex int

	Dialogs       []dialog.Dialog
	NextDialogKey int

	ShowNavigation bool
	ShowTrash      bool
	ShowNoteInfo   bool
	EditingTags    bool
	EditorMode     EditorMode
	Revisions      []notes.Note
	ShouldPrint    bool
	SearchFocus    bool

	Auth     auth.Status
	Settings settings.Settings
}

func NewState(s settings.Settings) State {
	return State{
		Sort:       filter.Sort{Type: s.SortType, Reversed: s.SortReversed},
		EditorMode: ModeEdit,
		Auth:       auth.StatusPending,
		Settings:   s,
	}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := s
	out.Notes = cloneNotes(s.Notes)
	out.Tags = slices.Clone(s.Tags)
	out.Revisions = cloneNotes(s.Revisions)
	out.Dialogs = slices.Clone(s.Dialogs)
	if s.Selected != nil {
		n := s.Selected.Clone()
		out.Selected = &n
	}
	if s.Tag != nil {
		t := *s.Tag
		out.Tag = &t
	}
	return out
}

func cloneNotes(list []notes.Note) []notes.Note {
	if list == nil {
		return nil
	}
	out := make([]notes.Note, len(list))
	for i, n := range list {
		out[i] = n.Clone()
	}
	return out
}

// FilterOptions turns the state's view settings into filter options.
func (s State) FilterOptions(mode filter.Mode) filter.Options {
	opts := filter.Options{
		ShowTrash: s.ShowTrash,
		Query:     s.Filter,
		Sort:      s.Sort,
		Mode:      mode,
	}
	if s.Tag != nil {
		opts.Tag = s.Tag.Name
	}
	return opts
}

// replaceNote swaps in n by ID, appending when absent.
func replaceNote(list []notes.Note, n notes.Note) []notes.Note {
	for i := range list {
		if list[i].ID == n.ID {
			out := slices.Clone(list)
			out[i] = n
			return out
		}
	}
	return append(slices.Clone(list), n)
}

func removeNote(list []notes.Note, id string) []notes.Note {
	return slices.DeleteFunc(slices.Clone(list), func(n notes.Note) bool { return n.ID == id })
}
