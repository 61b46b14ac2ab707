package bucket

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/yash-srivastava19/canopy/internal/notes"
)

const revisionsDir = ".revisions"

// Files stores notes as markdown files with frontmatter, one file per note
// named <id>.md. Prior versions are kept under .revisions/<id>/<version>.md.
type Files struct {
	dir    string
	logger *slog.Logger

	mu sync.Mutex
	// known maps a note id to the hash of the file content last seen for
	// it, so our own writes are not re-announced by the watcher.
	known map[string]uint64

	emitter Emitter[notes.Note]
}

// NewFiles opens (creating if needed) a note directory.
func NewFiles(dir string, logger *slog.Logger) (*Files, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("bucket: ensure notes dir: %w", err)
	}
	return &Files{dir: dir, logger: logger, known: make(map[string]uint64)}, nil
}

func (f *Files) Dir() string {
	return f.dir
}

// Path is the markdown file holding the note with the given id.
func (f *Files) Path(id string) string {
	return filepath.Join(f.dir, id+".md")
}

// List returns every note in creation order.
func (f *Files) List(ctx context.Context) ([]notes.Note, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("bucket: read notes dir: %w", err)
	}

	var out []notes.Note
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if e.IsDir() || !isNoteFile(e.Name()) {
			continue
		}
		n, _, err := f.loadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			f.logger.Debug("bucket: skip unreadable note", "file", e.Name(), "err", err)
			continue
		}
		out = append(out, n)
	}
	sortByCreated(out)
	return out, nil
}

func (f *Files) Get(ctx context.Context, id string) (notes.Note, error) {
	n, _, err := f.loadFile(f.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return notes.Note{}, ErrNotFound
	}
	return n, err
}

func (f *Files) loadFile(path string) (notes.Note, uint64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return notes.Note{}, 0, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return notes.Note{}, 0, err
	}
	id := strings.TrimSuffix(filepath.Base(path), ".md")
	return notes.Decode(id, string(data), info.ModTime()), xxhash.Sum64(data), nil
}

// Put writes n, assigning an id to new notes and bumping the version. The
// previous version is archived as a revision.
func (f *Files) Put(ctx context.Context, n notes.Note) (notes.Note, error) {
	var prev *notes.Note
	if n.ID != "" {
		old, _, err := f.loadFile(f.Path(n.ID))
		switch {
		case err == nil:
			prev = &old
		case !errors.Is(err, fs.ErrNotExist):
			return notes.Note{}, fmt.Errorf("bucket: load %s: %w", n.ID, err)
		}
	}
	n = StampNote(n, prev)

	if prev != nil {
		if err := f.writeRevision(*prev); err != nil {
			f.logger.Warn("bucket: archive revision", "id", prev.ID, "err", err)
		}
	}

	data := []byte(notes.Encode(n))
	f.mu.Lock()
	f.known[n.ID] = xxhash.Sum64(data)
	f.mu.Unlock()
	if err := writeAtomic(f.Path(n.ID), data); err != nil {
		f.forget(n.ID)
		return notes.Note{}, fmt.Errorf("bucket: write %s: %w", n.ID, err)
	}

	f.emitter.Emit(Event[notes.Note]{
		Kind:     KindUpdate,
		ID:       n.ID,
		Data:     &n,
		Original: prev,
		Patch:    notes.Diff(prev, n),
	})
	return n, nil
}

func (f *Files) Remove(ctx context.Context, id string) error {
	if err := os.Remove(f.Path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("bucket: remove %s: %w", id, err)
	}
	f.forget(id)
	if err := os.RemoveAll(filepath.Join(f.dir, revisionsDir, id)); err != nil {
		f.logger.Warn("bucket: remove revisions", "id", id, "err", err)
	}
	f.emitter.Emit(Event[notes.Note]{Kind: KindRemove, ID: id})
	return nil
}

// Index rereads the directory. Notes whose file content changed since it was
// last seen are announced as indexing updates, then the full snapshot is
// sent as an index event.
func (f *Files) Index(ctx context.Context) error {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return fmt.Errorf("bucket: read notes dir: %w", err)
	}

	var all []notes.Note
	seen := make(map[string]struct{})
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() || !isNoteFile(e.Name()) {
			continue
		}
		n, sum, err := f.loadFile(filepath.Join(f.dir, e.Name()))
		if err != nil {
			continue
		}
		all = append(all, n)
		seen[n.ID] = struct{}{}
		if f.remember(n.ID, sum) {
			note := n
			f.emitter.Emit(Event[notes.Note]{Kind: KindUpdate, ID: n.ID, Data: &note, IsIndexing: true})
		}
	}

	f.mu.Lock()
	for id := range f.known {
		if _, ok := seen[id]; !ok {
			delete(f.known, id)
		}
	}
	f.mu.Unlock()

	sortByCreated(all)
	f.emitter.Emit(Event[notes.Note]{Kind: KindIndex, Items: all})
	return nil
}

func (f *Files) Subscribe(ctx context.Context) (*Subscription[notes.Note], error) {
	return f.emitter.Subscribe(ctx), nil
}

// Revisions returns the archived versions of id, oldest first.
func (f *Files) Revisions(ctx context.Context, id string) ([]notes.Note, error) {
	if _, err := os.Stat(f.Path(id)); errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	entries, err := os.ReadDir(filepath.Join(f.dir, revisionsDir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("bucket: read revisions %s: %w", id, err)
	}

	var out []notes.Note
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		n, _, err := f.loadFile(filepath.Join(f.dir, revisionsDir, id, e.Name()))
		if err != nil {
			continue
		}
		n.ID = id
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func (f *Files) writeRevision(n notes.Note) error {
	dir := filepath.Join(f.dir, revisionsDir, n.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, strconv.Itoa(n.Version)+".md"), []byte(notes.Encode(n)), 0o644)
}

// remember records sum for id and reports whether it differs from what was
// previously known.
func (f *Files) remember(id string, sum uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if old, ok := f.known[id]; ok && old == sum {
		return false
	}
	f.known[id] = sum
	return true
}

func (f *Files) forget(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.known[id]
	delete(f.known, id)
	return ok
}

func isNoteFile(name string) bool {
	return strings.HasSuffix(name, ".md") && !strings.HasPrefix(name, ".")
}

func sortByCreated(list []notes.Note) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].Created.Equal(list[j].Created) {
			return list[i].Created.Before(list[j].Created)
		}
		return list[i].ID < list[j].ID
	})
}

// writeAtomic writes through a hidden temp file so watchers never observe a
// half-written note.
func writeAtomic(path string, data []byte) error {
	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
