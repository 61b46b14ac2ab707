// Package bucket holds the note and tag stores. A bucket is the source of
// truth for entity content; every write is announced to subscribers as an
// index, update or remove event.
package bucket

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yash-srivastava19/canopy/internal/notes"
)

var ErrNotFound = errors.New("bucket: not found")

// Entity is anything a bucket can hold.
type Entity interface {
	Key() string
}

// Kind is the type of a bucket change event.
type Kind int

const (
	// KindIndex carries a full snapshot of the bucket.
	KindIndex Kind = iota
	// KindUpdate announces a single entity upsert.
	KindUpdate
	// KindRemove announces a single entity deletion.
	KindRemove
)

func (k Kind) String() string {
	switch k {
	case KindIndex:
		return "index"
	case KindUpdate:
		return "update"
	case KindRemove:
		return "remove"
	}
	return "unknown"
}

// Event is a change notification. Data, Original, Patch and IsIndexing are
// set on updates; Items on index events.
type Event[T any] struct {
	Kind       Kind
	ID         string
	Data       *T
	Original   *T
	Patch      map[string]any
	IsIndexing bool
	Items      []T
}

// Bucket is the store contract the controller relies on.
type Bucket[T Entity] interface {
	List(ctx context.Context) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	// Put writes v and returns the stored value, which may carry a
	// bucket-assigned ID and version.
	Put(ctx context.Context, v T) (T, error)
	Remove(ctx context.Context, id string) error
	// Index triggers a full fetch: changed entities are announced as
	// updates with IsIndexing set, followed by one index event.
	Index(ctx context.Context) error
	Subscribe(ctx context.Context) (*Subscription[T], error)
}

// Historian is implemented by buckets that keep prior versions.
type Historian[T Entity] interface {
	Revisions(ctx context.Context, id string) ([]T, error)
}

// StampNote assigns a fresh ID to new notes and bumps the version. It is the
// stamp function note buckets use on every write.
func StampNote(n notes.Note, prev *notes.Note) notes.Note {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if n.Created.IsZero() {
		n.Created = now
	}
	if n.Modified.IsZero() {
		n.Modified = now
	}
	n.Version = 1
	if prev != nil {
		n.Version = prev.Version + 1
	}
	return n
}

// DiffNote adapts notes.Diff to the bucket differ signature.
func DiffNote(original *notes.Note, updated notes.Note) map[string]any {
	return notes.Diff(original, updated)
}
