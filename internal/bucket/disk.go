package bucket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/peterbourgon/diskv/v3"

	"github.com/yash-srivastava19/canopy/internal/notes"
)

// Disk is a JSON-per-key bucket backed by diskv. Tags live here.
type Disk[T Entity] struct {
	d    *diskv.Diskv
	diff func(orig *T, v T) map[string]any

	emitter Emitter[T]
}

// NewDisk opens a flat diskv store rooted at dir. diff may be nil.
func NewDisk[T Entity](dir string, diff func(orig *T, v T) map[string]any) *Disk[T] {
	return &Disk[T]{
		d: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 1024 * 1024, // 1MB
		}),
		diff: diff,
	}
}

// NewTagDisk is a Disk bucket wired for tags.
func NewTagDisk(dir string) *Disk[notes.Tag] {
	return NewDisk[notes.Tag](dir, nil)
}

func (b *Disk[T]) read(key string) (T, error) {
	var v T
	raw, err := b.d.Read(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return v, ErrNotFound
		}
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("bucket: decode %s: %w", key, err)
	}
	return v, nil
}

// List returns every entity ordered by key.
func (b *Disk[T]) List(ctx context.Context) ([]T, error) {
	var keys []string
	for key := range b.d.Keys(ctx.Done()) {
		if strings.HasPrefix(key, ".") {
			continue
		}
		keys = append(keys, key)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)

	out := make([]T, 0, len(keys))
	for _, key := range keys {
		v, err := b.read(key)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (b *Disk[T]) Get(ctx context.Context, id string) (T, error) {
	return b.read(id)
}

func (b *Disk[T]) Put(ctx context.Context, v T) (T, error) {
	key := v.Key()
	if key == "" {
		return v, errors.New("bucket: empty key")
	}
	var prev *T
	if old, err := b.read(key); err == nil {
		prev = &old
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("bucket: encode %s: %w", key, err)
	}
	if err := b.d.Write(key, raw); err != nil {
		return v, fmt.Errorf("bucket: write %s: %w", key, err)
	}

	ev := Event[T]{Kind: KindUpdate, ID: key, Data: &v, Original: prev}
	if b.diff != nil {
		ev.Patch = b.diff(prev, v)
	}
	b.emitter.Emit(ev)
	return v, nil
}

func (b *Disk[T]) Remove(ctx context.Context, id string) error {
	if !b.d.Has(id) {
		return ErrNotFound
	}
	if err := b.d.Erase(id); err != nil {
		return fmt.Errorf("bucket: erase %s: %w", id, err)
	}
	b.emitter.Emit(Event[T]{Kind: KindRemove, ID: id})
	return nil
}

func (b *Disk[T]) Index(ctx context.Context) error {
	items, err := b.List(ctx)
	if err != nil {
		return err
	}
	b.emitter.Emit(Event[T]{Kind: KindIndex, Items: items})
	return nil
}

func (b *Disk[T]) Subscribe(ctx context.Context) (*Subscription[T], error) {
	return b.emitter.Subscribe(ctx), nil
}
