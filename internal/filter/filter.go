// Package filter derives the visible note list from the full collection.
package filter

import (
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

// SortType is the primary sort key.
type SortType string

const (
	SortModified     SortType = "modificationDate"
	SortCreated      SortType = "creationDate"
	SortAlphabetical SortType = "alphabetical"
)

// ParseSortType falls back to SortModified for unknown values.
func ParseSortType(s string) SortType {
	switch SortType(s) {
	case SortCreated, SortAlphabetical:
		return SortType(s)
	}
	return SortModified
}

type Sort struct {
	Type     SortType
	Reversed bool
}

// Mode selects how the search query is matched.
type Mode string

const (
	ModeTokens Mode = "tokens"
	ModeFuzzy  Mode = "fuzzy"
)

type Options struct {
	ShowTrash bool
	Tag       string // tag name; empty shows every tag
	Query     string
	Sort      Sort
	Mode      Mode
}

// Apply returns the notes visible under opts. It never fails; an empty
// result means nothing matched. The input slice is not modified.
func Apply(all []notes.Note, opts Options) []notes.Note {
	out := make([]notes.Note, 0, len(all))
	for _, n := range all {
		if n.Deleted != opts.ShowTrash {
			continue
		}
		if opts.Tag != "" && !n.HasTag(opts.Tag) {
			continue
		}
		out = append(out, n)
	}

	out = search(out, opts.Query, opts.Mode)
	sortNotes(out, opts.Sort)
	return out
}

func search(list []notes.Note, query string, mode Mode) []notes.Note {
	query = strings.TrimSpace(query)
	if query == "" || len(list) == 0 {
		return list
	}

	if mode == ModeFuzzy {
		targets := make([]string, len(list))
		for i, n := range list {
			targets[i] = n.Content + " " + strings.Join(n.Tags, " ")
		}
		matches := fuzzy.Find(query, targets)
		hit := make([]bool, len(list))
		for _, m := range matches {
			hit[m.Index] = true
		}
		out := list[:0]
		for i, n := range list {
			if hit[i] {
				out = append(out, n)
			}
		}
		return out
	}

	tokens := strings.Fields(strings.ToLower(query))
	out := list[:0]
	for _, n := range list {
		if matchesAll(strings.ToLower(n.Content), tokens) {
			out = append(out, n)
		}
	}
	return out
}

func matchesAll(content string, tokens []string) bool {
	for _, tok := range tokens {
		if !strings.Contains(content, tok) {
			return false
		}
	}
	return true
}

// sortNotes orders pinned notes first, then by s. Ties keep input order.
func sortNotes(list []notes.Note, s Sort) {
	var titles []string
	if s.Type == SortAlphabetical {
		titles = make([]string, len(list))
		for i, n := range list {
			titles[i] = strings.ToLower(display.Title(n.Content))
		}
	}

	idx := make([]int, len(list))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		x, y := list[idx[a]], list[idx[b]]
		if x.Pinned() != y.Pinned() {
			return x.Pinned()
		}
		c := compare(x, y, s.Type, titles, idx[a], idx[b])
		if s.Reversed {
			c = -c
		}
		return c < 0
	})

	sorted := make([]notes.Note, len(list))
	for i, j := range idx {
		sorted[i] = list[j]
	}
	copy(list, sorted)
}

// compare returns the natural (non-reversed) order of x and y. Modified is
// newest first; created is oldest first; alphabetical is A to Z.
func compare(x, y notes.Note, t SortType, titles []string, i, j int) int {
	switch t {
	case SortCreated:
		return cmpTime(x.Created.UnixNano(), y.Created.UnixNano())
	case SortAlphabetical:
		return strings.Compare(titles[i], titles[j])
	}
	return cmpTime(y.Modified.UnixNano(), x.Modified.UnixNano())
}

func cmpTime(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
