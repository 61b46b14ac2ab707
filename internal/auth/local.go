package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const (
	accountFile = "account.json"
	sessionFile = "session"
)

type account struct {
	Name string `json:"name"`
	Hash string `json:"hash"`
}

// Local is a single-account client backed by files in dir. The first
// SignIn creates the account; later sign-ins must match it.
type Local struct {
	dir     string
	logger  *slog.Logger
	signals chan Signal
}

func NewLocal(dir string, logger *slog.Logger) (*Local, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("auth: ensure account dir: %w", err)
	}
	return &Local{dir: dir, logger: logger, signals: make(chan Signal, 16)}, nil
}

func (l *Local) loadAccount() (account, error) {
	var a account
	data, err := os.ReadFile(filepath.Join(l.dir, accountFile))
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, fmt.Errorf("auth: decode account: %w", err)
	}
	return a, nil
}

// HasAccount reports whether an account has been created in dir.
func HasAccount(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, accountFile))
	return err == nil
}

// IsAuthorized reports whether a session exists for the stored account.
func (l *Local) IsAuthorized() (bool, error) {
	a, err := l.loadAccount()
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	data, err := os.ReadFile(filepath.Join(l.dir, sessionFile))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("auth: read session: %w", err)
	}
	return strings.TrimSpace(string(data)) == a.Name, nil
}

func (l *Local) Account() string {
	if ok, _ := l.IsAuthorized(); !ok {
		return ""
	}
	a, _ := l.loadAccount()
	return a.Name
}

func (l *Local) Signals() <-chan Signal {
	return l.signals
}

// SignIn opens a session, creating the account on first use.
func (l *Local) SignIn(name, password string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("auth: account name must not be empty")
	}

	a, err := l.loadAccount()
	switch {
	case errors.Is(err, fs.ErrNotExist):
		hash, err := HashPassword(password)
		if err != nil {
			return err
		}
		a = account{Name: name, Hash: hash}
		data, _ := json.MarshalIndent(a, "", "  ")
		if err := os.WriteFile(filepath.Join(l.dir, accountFile), data, 0o600); err != nil {
			return fmt.Errorf("auth: write account: %w", err)
		}
		l.logger.Info("auth: account created", "account", name)
	case err != nil:
		return err
	case a.Name != name || !VerifyPassword(a.Hash, password):
		return ErrBadCredentials
	}

	if err := os.WriteFile(filepath.Join(l.dir, sessionFile), []byte(name+"\n"), 0o600); err != nil {
		return fmt.Errorf("auth: write session: %w", err)
	}
	l.signal(SignalAuthorized)
	return nil
}

// SignOut ends the session. Signing out twice is not an error.
func (l *Local) SignOut() error {
	err := os.Remove(filepath.Join(l.dir, sessionFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("auth: remove session: %w", err)
	}
	l.signal(SignalUnauthorized)
	return nil
}

// Watch emits signals for sessions opened or closed by other processes
// until ctx is done.
func (l *Local) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("auth: create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("auth: watch %s: %w", l.dir, err)
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.Warn("auth: watcher error", "err", err)
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(evt.Name) != sessionFile {
					continue
				}
				if evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
					l.signal(SignalUnauthorized)
				} else if evt.Op&(fsnotify.Create|fsnotify.Write) != 0 {
					l.signal(SignalAuthorized)
				}
			}
		}
	}()
	return nil
}

// signal never blocks. The handler rereads the predicate on every signal,
// so a dropped duplicate loses nothing.
func (l *Local) signal(s Signal) {
	select {
	case l.signals <- s:
	default:
		l.logger.Debug("auth: signal dropped", "signal", s)
	}
}
