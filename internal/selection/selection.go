// Package selection picks which note stays selected when the visible list
// changes shape under it.
package selection

import (
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

// PreviousIndex filters all with opts, finds the note with the given id and
// returns the index just before it. It returns 0 when the note is first or
// not visible at all.
func PreviousIndex(all []notes.Note, opts filter.Options, id string) int {
	return IndexBefore(filter.Apply(all, opts), id)
}

// IndexBefore is PreviousIndex over an already filtered list.
func IndexBefore(list []notes.Note, id string) int {
	for i, n := range list {
		if n.ID == id {
			return max(0, i-1)
		}
	}
	return 0
}

// Resolve returns a copy of the note at idx, clamped to the last element,
// or nil for an empty list.
func Resolve(list []notes.Note, idx int) *notes.Note {
	if len(list) == 0 {
		return nil
	}
	idx = min(max(idx, 0), len(list)-1)
	n := list[idx]
	return &n
}

// Find returns a copy of the note with the given id, or nil.
func Find(list []notes.Note, id string) *notes.Note {
	for _, n := range list {
		if n.ID == id {
			n := n
			return &n
		}
	}
	return nil
}
