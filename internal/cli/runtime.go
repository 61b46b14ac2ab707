// Package cli is the canopy command line: the TUI, the headless host and
// one-shot note commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/yash-srivastava19/canopy/internal/app"
	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/config"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/settings"
	"github.com/yash-srivastava19/canopy/internal/telemetry"
	"github.com/yash-srivastava19/canopy/internal/transport"
)

// runtime is what every command needs: config, a logger and the buckets.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	notes  *bucket.Files
	tags   *bucket.Disk[notes.Tag]

	logFile *os.File
}

type logTarget int

const (
	logOneShot logTarget = iota // stderr, warnings and up
	logService                  // stderr, configured level
	logToFile                   // the TUI owns the terminal
)

func openRuntime(o *rootOptions, target logTarget) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	r := &runtime{cfg: cfg}

	level := cfg.Level()
	var w io.Writer = os.Stderr
	switch target {
	case logToFile:
		f, err := os.OpenFile(cfg.LogFile(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
		r.logFile, w = f, f
	case logOneShot:
		level = max(level, slog.LevelWarn)
	}
	if o.debug {
		level = slog.LevelDebug
	}
	r.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))

	if r.notes, err = bucket.NewFiles(cfg.NotesDir, r.logger); err != nil {
		r.Close()
		return nil, err
	}
	r.tags = bucket.NewTagDisk(cfg.TagsDir)
	r.logger.Debug("runtime ready", "config", cfg.File, "notes", cfg.NotesDir)
	return r, nil
}

func (r *runtime) Close() {
	if r.logFile != nil {
		_ = r.logFile.Close()
	}
}

func (r *runtime) searchMode() filter.Mode {
	if r.cfg.SearchMode == string(filter.ModeFuzzy) {
		return filter.ModeFuzzy
	}
	return filter.ModeTokens
}

// authClient picks the local account when one exists; otherwise the user is
// always signed in under their login name.
func (r *runtime) authClient() (auth.Client, *auth.Local, error) {
	dir := r.cfg.AccountDir()
	if !auth.HasAccount(dir) {
		name := os.Getenv("USER")
		if name == "" {
			name = "local"
		}
		return auth.Open{Name: name}, nil, nil
	}
	local, err := auth.NewLocal(dir, r.logger)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

// host starts everything a long-running controller needs: file watchers, the
// socket transport if configured, and the controller itself.
func (r *runtime) host(ctx context.Context, socket string) (*app.Controller, *auth.Local, error) {
	client, local, err := r.authClient()
	if err != nil {
		return nil, nil, err
	}

	var tr transport.Transport = transport.NoOp{}
	if socket != "" {
		s, err := transport.Listen(socket, r.logger)
		if err != nil {
			return nil, nil, err
		}
		tr = s
		go func() {
			<-ctx.Done()
			_ = s.Close()
		}()
	}

	if err := r.notes.Watch(ctx); err != nil {
		r.logger.Warn("note watcher unavailable", "err", err)
	}
	if local != nil {
		if err := local.Watch(ctx); err != nil {
			r.logger.Warn("session watcher unavailable", "err", err)
		}
	}

	ctl, err := app.New(app.Options{
		Notes:      r.notes,
		Tags:       r.tags,
		Auth:       client,
		Transport:  tr,
		Settings:   settings.NewStore(r.cfg.SettingsFile()),
		Telemetry:  telemetry.New(r.logger),
		SearchMode: r.searchMode(),
		ExportPath: defaultExportPath(r.cfg),
		Logger:     r.logger,
	})
	if err != nil {
		return nil, nil, err
	}
	if err := ctl.Init(ctx); err != nil {
		return nil, nil, err
	}
	return ctl, local, nil
}

func defaultExportPath(cfg *config.Config) string {
	return filepath.Join(cfg.DataDir, "canopy-export.zip")
}

// findNote resolves an id or a unique id prefix.
func (r *runtime) findNote(ctx context.Context, ref string) (notes.Note, error) {
	if n, err := r.notes.Get(ctx, ref); err == nil {
		return n, nil
	}
	all, err := r.notes.List(ctx)
	if err != nil {
		return notes.Note{}, err
	}
	var match []notes.Note
	for _, n := range all {
		if strings.HasPrefix(n.ID, ref) {
			match = append(match, n)
		}
	}
	switch len(match) {
	case 0:
		return notes.Note{}, fmt.Errorf("no note %q", ref)
	case 1:
		return match[0], nil
	}
	return notes.Note{}, fmt.Errorf("%q matches %d notes", ref, len(match))
}

// ensureTags creates tag records for names not yet known.
func (r *runtime) ensureTags(ctx context.Context, names []string) error {
	existing, err := r.tags.List(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := notes.FindTag(existing, name); ok {
			continue
		}
		t := notes.NewTag(name, len(existing))
		if _, err := r.tags.Put(ctx, t); err != nil {
			return err
		}
		existing = append(existing, t)
	}
	return nil
}

func launchEditor(editor, path string) error {
	// Support editor config with args, e.g. "code --wait"
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		parts = []string{"vi"}
	}
	args := append(parts[1:], path)
	cmd := exec.Command(parts[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor: %w", err)
	}
	return nil
}
