package app

import (
	"context"

	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

// Inbox messages.
type (
	loadNotesMsg   struct{}
	loadTagsMsg    struct{}
	noteUpdatedMsg struct {
		id         string
		data       *notes.Note
		original   *notes.Note
		patch      map[string]any
		isIndexing bool
	}
	authSignalMsg struct{ signal auth.Signal }
	commandMsg    struct{ payload []byte }
)

// LoadNotes asks the controller to reload the note collection.
func LoadNotes() any { return loadNotesMsg{} }

// LoadTags asks the controller to reload the tag collection.
func LoadTags() any { return loadTagsMsg{} }

// CommandPayload wraps a raw host command for Handle.
func CommandPayload(payload []byte) any { return commandMsg{payload: payload} }

// noteMessage translates a note bucket event. Index and remove both reload
// the whole collection; removing a note can move the selection.
func noteMessage(ev bucket.Event[notes.Note]) any {
	switch ev.Kind {
	case bucket.KindUpdate:
		return noteUpdatedMsg{
			id:         ev.ID,
			data:       ev.Data,
			original:   ev.Original,
			patch:      ev.Patch,
			isIndexing: ev.IsIndexing,
		}
	default:
		return loadNotesMsg{}
	}
}

func (c *Controller) pumpNotes(ctx context.Context, sub *bucket.Subscription[notes.Note]) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := c.post(ctx, noteMessage(ev)); err != nil {
				return nil
			}
		}
	}
}

// pumpTags reloads tags on every tag event.
func (c *Controller) pumpTags(ctx context.Context, sub *bucket.Subscription[notes.Tag]) error {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-sub.Events():
			if !ok {
				return nil
			}
			if err := c.post(ctx, loadTagsMsg{}); err != nil {
				return nil
			}
		}
	}
}

func (c *Controller) pumpAuth(ctx context.Context, sigs <-chan auth.Signal) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-sigs:
			if !ok {
				return nil
			}
			if err := c.post(ctx, authSignalMsg{signal: s}); err != nil {
				return nil
			}
		}
	}
}

func (c *Controller) pumpCommands(ctx context.Context, cmds <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-cmds:
			if !ok {
				return nil
			}
			if err := c.post(ctx, commandMsg{payload: p}); err != nil {
				return nil
			}
		}
	}
}

func (c *Controller) loadNotes() {
	if c.state.Auth != auth.StatusAuthorized {
		return
	}
	list, err := c.notes.List(c.ctx)
	if err != nil {
		c.logger.Error("app: load notes", "err", err)
		return
	}
	c.setNotes(list)
}

func (c *Controller) loadTags() {
	if c.state.Auth != auth.StatusAuthorized {
		return
	}
	list, err := c.tags.List(c.ctx)
	if err != nil {
		c.logger.Error("app: load tags", "err", err)
		return
	}
	notes.SortTags(list, c.state.Settings.SortTagsAlpha)
	c.state.Tags = list
	if c.state.Tag != nil {
		if t, ok := notes.FindTag(list, c.state.Tag.Name); ok {
			c.state.Tag = &t
		} else {
			c.state.Tag = nil
		}
	}
}

// noteUpdated applies an update event. Indexing updates only patch the
// collection. Other updates reload, then lay the event's content over the
// selected note so an open editor never steps back to an older snapshot.
func (c *Controller) noteUpdated(m noteUpdatedMsg) {
	if m.data == nil {
		c.loadNotes()
		return
	}
	if m.isIndexing {
		if c.state.Auth == auth.StatusAuthorized {
			c.state.Notes = replaceNote(c.state.Notes, *m.data)
		}
		return
	}
	c.loadNotes()
	sel := c.state.Selected
	if sel == nil || sel.ID != m.id || sel.Version > m.data.Version {
		return
	}
	patched := sel.Clone()
	if content, ok := m.patch["content"].(string); ok {
		patched.Content = content
	} else {
		patched = m.data.Clone()
	}
	c.state.Selected = &patched
}
