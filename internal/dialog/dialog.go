// Package dialog tracks the stack of open dialogs and the registry of kinds
// the renderers know how to draw.
package dialog

import (
	"errors"
	"fmt"
	"slices"
)

// ErrUnregistered means a dialog kind was opened that no renderer knows.
// It indicates a programming error and is never recovered.
var ErrUnregistered = errors.New("dialog: unregistered dialog kind")

// Built-in kinds.
const (
	About    = "About"
	Settings = "Settings"
	Share    = "Share"
)

type Dialog struct {
	Type   string         `json:"type"`
	Modal  bool           `json:"modal"`
	Single bool           `json:"single"`
	Key    int            `json:"key"`
	Params map[string]any `json:"params,omitempty"`
}

// Spec describes a registered kind.
type Spec struct {
	Title  string
	Modal  bool
	Single bool
}

type Registry struct {
	specs map[string]Spec
}

// NewRegistry returns a registry holding the built-in kinds.
func NewRegistry() *Registry {
	r := &Registry{specs: make(map[string]Spec)}
	r.Register(About, Spec{Title: "About canopy", Modal: true, Single: true})
	r.Register(Settings, Spec{Title: "Settings", Modal: true, Single: true})
	r.Register(Share, Spec{Title: "Share note", Modal: true})
	return r
}

func (r *Registry) Register(kind string, s Spec) {
	r.specs[kind] = s
}

// Lookup returns the spec for kind, or an error wrapping ErrUnregistered.
func (r *Registry) Lookup(kind string) (Spec, error) {
	s, ok := r.specs[kind]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %q", ErrUnregistered, kind)
	}
	return s, nil
}

// Kinds lists the registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	out := make([]string, 0, len(r.specs))
	for k := range r.specs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Validate checks every open dialog against the registry.
func (r *Registry) Validate(open []Dialog) error {
	for _, d := range open {
		if _, err := r.Lookup(d.Type); err != nil {
			return err
		}
	}
	return nil
}

// Show appends d unless it is single-instance and a dialog of the same type
// is already open. It reports whether d was added.
func Show(open []Dialog, d Dialog) ([]Dialog, bool) {
	if d.Single && slices.ContainsFunc(open, func(o Dialog) bool { return o.Type == d.Type }) {
		return open, false
	}
	return append(open, d), true
}

// Close removes the dialog with the given key.
func Close(open []Dialog, key int) []Dialog {
	return slices.DeleteFunc(slices.Clone(open), func(d Dialog) bool { return d.Key == key })
}

// Top returns the most recently opened dialog.
func Top(open []Dialog) (Dialog, bool) {
	if len(open) == 0 {
		return Dialog{}, false
	}
	return open[len(open)-1], true
}
