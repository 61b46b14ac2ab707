package bucket

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yash-srivastava19/canopy/internal/notes"
)

// Watch announces edits made to the note directory by other processes until
// ctx is done. Writes made through Put are recognised by content hash and not
// announced twice. A watcher error falls back to a full Index.
func (f *Files) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("bucket: create watcher: %w", err)
	}
	if err := watcher.Add(f.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("bucket: watch %s: %w", f.dir, err)
	}

	go func() {
		defer watcher.Close()

		throttle := newPathThrottle(100 * time.Millisecond)
		defer throttle.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				f.logger.Warn("bucket: watcher error, reindexing", "err", err)
				if err := f.Index(ctx); err != nil {
					f.logger.Error("bucket: reindex", "err", err)
				}
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				name := filepath.Base(evt.Name)
				if !isNoteFile(name) {
					continue
				}
				throttle.Enqueue(evt.Name, f.reconcile)
			}
		}
	}()
	return nil
}

// reconcile compares the file at path with what the bucket last saw and
// emits the matching event.
func (f *Files) reconcile(path string) {
	id := strings.TrimSuffix(filepath.Base(path), ".md")
	n, sum, err := f.loadFile(path)
	if err != nil {
		if f.forget(id) {
			f.emitter.Emit(Event[notes.Note]{Kind: KindRemove, ID: id})
		}
		return
	}
	if !f.remember(n.ID, sum) {
		return
	}
	f.logger.Debug("bucket: external change", "id", n.ID)
	f.emitter.Emit(Event[notes.Note]{Kind: KindUpdate, ID: n.ID, Data: &n, Patch: notes.Diff(nil, n)})
}

// pathThrottle coalesces bursts of events for the same file so an editor
// saving in several steps produces one reconcile.
type pathThrottle struct {
	mu      sync.Mutex
	timer   *time.Timer
	pending map[string]struct{}
	delay   time.Duration
}

func newPathThrottle(delay time.Duration) *pathThrottle {
	return &pathThrottle{delay: delay, pending: make(map[string]struct{})}
}

func (t *pathThrottle) Enqueue(path string, fn func(string)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[path] = struct{}{}
	if t.timer == nil {
		t.timer = time.AfterFunc(t.delay, func() { t.flush(fn) })
	}
}

func (t *pathThrottle) flush(fn func(string)) {
	t.mu.Lock()
	pending := t.pending
	t.pending = make(map[string]struct{})
	t.timer = nil
	t.mu.Unlock()

	for path := range pending {
		fn(path)
	}
}

func (t *pathThrottle) Stop() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}
