package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Reserved action names with fixed routing.
const (
	ActionNewNote = "newNote"
	ActionExport  = "exportZipArchive"
)

// Method is a controller method. It receives the command's arguments
// positionally, in the order they were declared.
type Method func(args []json.RawMessage)

// Creator is an action creator. It receives the whole command.
type Creator func(cmd Command)

// Tables is the explicit dispatch table registered at startup.
type Tables struct {
	Methods  map[string]Method
	Creators map[string]Creator
	// NewNote handles newNote whatever its argument shape.
	NewNote Creator
	// Export runs exportZipArchive off the caller's goroutine.
	Export func(ctx context.Context, cmd Command) error
}

// Router validates commands and hands them to their handler. It never
// panics and never reports a failure to its caller.
type Router struct {
	t      Tables
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewRouter checks that no action name is registered twice.
func NewRouter(t Tables, logger *slog.Logger) (*Router, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for name := range t.Methods {
		if _, dup := t.Creators[name]; dup {
			return nil, fmt.Errorf("command: %q registered as both method and creator", name)
		}
	}
	for _, reserved := range []string{ActionNewNote, ActionExport} {
		_, m := t.Methods[reserved]
		_, c := t.Creators[reserved]
		if m || c {
			return nil, fmt.Errorf("command: %q is reserved", reserved)
		}
	}
	return &Router{t: t, logger: logger}, nil
}

// Known reports whether action would be dispatched.
func (r *Router) Known(action string) bool {
	if action == ActionNewNote {
		return r.t.NewNote != nil
	}
	if action == ActionExport {
		return r.t.Export != nil
	}
	_, m := r.t.Methods[action]
	_, c := r.t.Creators[action]
	return m || c
}

// DispatchRaw parses payload and dispatches it. Malformed payloads are
// dropped.
func (r *Router) DispatchRaw(ctx context.Context, payload []byte) bool {
	cmd, err := Parse(payload)
	if err != nil {
		r.logger.Debug("command: dropped", "err", err)
		return false
	}
	return r.Dispatch(ctx, cmd)
}

// Dispatch runs cmd and reports whether a handler took it. Unknown actions
// and handler panics are logged and dropped.
func (r *Router) Dispatch(ctx context.Context, cmd Command) (handled bool) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("command: handler panic", "action", cmd.Action, "panic", p)
			handled = false
		}
	}()

	switch cmd.Action {
	case ActionExport:
		if r.t.Export == nil {
			return false
		}
		r.export(ctx, cmd)
		return true
	case ActionNewNote:
		if r.t.NewNote == nil {
			return false
		}
		r.t.NewNote(cmd)
		return true
	}

	if m, ok := r.t.Methods[cmd.Action]; ok {
		m(cmd.Values())
		return true
	}
	if c, ok := r.t.Creators[cmd.Action]; ok {
		c(cmd)
		return true
	}
	r.logger.Debug("command: unknown action", "action", cmd.Action)
	return false
}

func (r *Router) export(ctx context.Context, cmd Command) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("command: export panic", "panic", p)
			}
		}()
		if err := r.t.Export(ctx, cmd); err != nil {
			r.logger.Error("command: export failed", "err", err)
		}
	}()
}

// Wait blocks until running exports finish.
func (r *Router) Wait() {
	r.wg.Wait()
}
