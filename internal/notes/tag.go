package notes

import (
	"net/url"
	"sort"
	"strings"
)

// Tag is a named label. Index is the user's ordering rank in the navigation
// panel.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Index int    `json:"index"`
}

func (t Tag) Key() string {
	return t.ID
}

// TagID derives the bucket key for a tag name. Names differing only by case
// share a key.
func TagID(name string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(name)))
}

func NewTag(name string, index int) Tag {
	name = strings.TrimSpace(name)
	return Tag{ID: TagID(name), Name: name, Index: index}
}

// SortTags orders tags by rank, or by name when alpha is set. Ties keep
// their input order.
func SortTags(tags []Tag, alpha bool) {
	sort.SliceStable(tags, func(i, j int) bool {
		if alpha {
			return strings.ToLower(tags[i].Name) < strings.ToLower(tags[j].Name)
		}
		return tags[i].Index < tags[j].Index
	})
}

// FindTag looks a tag up by name, ignoring case.
func FindTag(tags []Tag, name string) (Tag, bool) {
	id := TagID(name)
	for _, t := range tags {
		if t.ID == id {
			return t, true
		}
	}
	return Tag{}, false
}
