package notes

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

// System tags carried on a note alongside the user's own tags.
const (
	SystemPinned    = "pinned"
	SystemMarkdown  = "markdown"
	SystemPublished = "published"
)

type Note struct {
	ID         string
	Content    string
	Tags       []string
	SystemTags []string
	Deleted    bool // in the trash
	Created    time.Time
	Modified   time.Time
	ShareURL   string
	PublishURL string
	Version    int // bumped by the bucket on every write
}

// Key identifies the note inside its bucket.
func (n Note) Key() string {
	return n.ID
}

// HasTag reports whether the note carries the tag name, ignoring case.
func (n Note) HasTag(name string) bool {
	for _, t := range n.Tags {
		if strings.EqualFold(t, name) {
			return true
		}
	}
	return false
}

func (n Note) HasSystemTag(name string) bool {
	return slices.Contains(n.SystemTags, name)
}

func (n Note) Pinned() bool   { return n.HasSystemTag(SystemPinned) }
func (n Note) Markdown() bool { return n.HasSystemTag(SystemMarkdown) }

// SetSystemTag adds or removes a system tag.
func (n *Note) SetSystemTag(name string, on bool) {
	has := n.HasSystemTag(name)
	switch {
	case on && !has:
		n.SystemTags = append(n.SystemTags, name)
	case !on && has:
		n.SystemTags = slices.DeleteFunc(slices.Clone(n.SystemTags), func(s string) bool { return s == name })
	}
}

// Clone returns a copy that shares no slices with n.
func (n Note) Clone() Note {
	n.Tags = slices.Clone(n.Tags)
	n.SystemTags = slices.Clone(n.SystemTags)
	return n
}

// Diff lists the fields that differ between two versions of a note, keyed
// by frontmatter name. A nil original reports every field.
func Diff(original *Note, updated Note) map[string]any {
	patch := make(map[string]any)
	if original == nil {
		original = &Note{}
	}
	if original.Content != updated.Content {
		patch["content"] = updated.Content
	}
	if !slices.Equal(original.Tags, updated.Tags) {
		patch["tags"] = slices.Clone(updated.Tags)
	}
	if !slices.Equal(original.SystemTags, updated.SystemTags) {
		patch["system_tags"] = slices.Clone(updated.SystemTags)
	}
	if original.Deleted != updated.Deleted {
		patch["deleted"] = updated.Deleted
	}
	if !original.Modified.Equal(updated.Modified) {
		patch["modified"] = updated.Modified
	}
	if original.ShareURL != updated.ShareURL {
		patch["share_url"] = updated.ShareURL
	}
	if original.PublishURL != updated.PublishURL {
		patch["publish_url"] = updated.PublishURL
	}
	return patch
}

// ParseFrontmatter splits a stored note into its metadata and content.
// Format:
//
//	---
//	id: 6f1c...
//	tags: [work, ideas]
//	system_tags: [pinned]
//	deleted: false
//	created: 2024-01-01T00:00:00Z
//	modified: 2024-01-01T00:00:00Z
//	version: 3
//	---
func ParseFrontmatter(raw string) (meta map[string]string, content string) {
	meta = make(map[string]string)
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	content = raw

	if !strings.HasPrefix(raw, "---\n") {
		return
	}

	rest := raw[4:]
	var fm string
	if strings.HasPrefix(rest, "---") {
		rest = rest[3:]
	} else {
		end := strings.Index(rest, "\n---")
		if end == -1 {
			return
		}
		fm, rest = rest[:end], rest[end+4:]
	}
	content = strings.TrimPrefix(strings.TrimPrefix(rest, "\n"), "\n")

	for _, line := range strings.Split(fm, "\n") {
		if idx := strings.Index(line, ":"); idx != -1 {
			meta[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
		}
	}
	return
}

func parseList(raw string) []string {
	raw = strings.Trim(raw, "[]")
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.Trim(strings.TrimSpace(p), "\"'")
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

func formatList(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// Encode renders the note in its on-disk form.
func Encode(n Note) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("id: " + n.ID + "\n")
	b.WriteString("tags: " + formatList(n.Tags) + "\n")
	if len(n.SystemTags) > 0 {
		b.WriteString("system_tags: " + formatList(n.SystemTags) + "\n")
	}
	b.WriteString("deleted: " + strconv.FormatBool(n.Deleted) + "\n")
	b.WriteString("created: " + n.Created.UTC().Format(time.RFC3339Nano) + "\n")
	b.WriteString("modified: " + n.Modified.UTC().Format(time.RFC3339Nano) + "\n")
	if n.ShareURL != "" {
		b.WriteString("share_url: " + n.ShareURL + "\n")
	}
	if n.PublishURL != "" {
		b.WriteString("publish_url: " + n.PublishURL + "\n")
	}
	b.WriteString("version: " + strconv.Itoa(n.Version) + "\n")
	b.WriteString("---\n\n")
	b.WriteString(n.Content)
	return b.String()
}

// Decode parses a stored note. Missing timestamps fall back to modTime and a
// missing id falls back to fallbackID (the file name).
func Decode(fallbackID, raw string, modTime time.Time) Note {
	meta, content := ParseFrontmatter(raw)

	id := meta["id"]
	if id == "" {
		id = fallbackID
	}

	created := modTime
	if t, err := time.Parse(time.RFC3339Nano, meta["created"]); err == nil {
		created = t
	}
	modified := modTime
	if t, err := time.Parse(time.RFC3339Nano, meta["modified"]); err == nil {
		modified = t
	}
	deleted, _ := strconv.ParseBool(meta["deleted"])
	version, _ := strconv.Atoi(meta["version"])

	return Note{
		ID:         id,
		Content:    content,
		Tags:       parseList(meta["tags"]),
		SystemTags: parseList(meta["system_tags"]),
		Deleted:    deleted,
		Created:    created,
		Modified:   modified,
		ShareURL:   meta["share_url"],
		PublishURL: meta["publish_url"],
		Version:    version,
	}
}
