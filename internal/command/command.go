// Package command parses and routes commands sent by the host process.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformed = errors.New("command: malformed")

// Arg is one field of a command, in payload order.
type Arg struct {
	Key   string
	Value json.RawMessage
}

// Command is an action name plus its arguments in declared order.
type Command struct {
	Action string
	Args   []Arg
}

// New builds a command from key/value pairs. Values are JSON encoded.
func New(action string, kv ...any) Command {
	c := Command{Action: action}
	for i := 0; i+1 < len(kv); i += 2 {
		key, _ := kv[i].(string)
		raw, err := json.Marshal(kv[i+1])
		if err != nil {
			continue
		}
		c.Args = append(c.Args, Arg{Key: key, Value: raw})
	}
	return c
}

// Parse decodes a JSON object keeping field order. The action field must
// be present and a string.
func Parse(payload []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return Command{}, fmt.Errorf("%w: not an object", ErrMalformed)
	}

	var c Command
	found := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return Command{}, fmt.Errorf("%w: field %q: %v", ErrMalformed, key, err)
		}
		if key == "action" {
			if err := json.Unmarshal(raw, &c.Action); err != nil || bytes.Equal(raw, []byte("null")) {
				return Command{}, fmt.Errorf("%w: action is not a string", ErrMalformed)
			}
			found = true
			continue
		}
		c.Args = append(c.Args, Arg{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return Command{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !found || c.Action == "" {
		return Command{}, fmt.Errorf("%w: missing action", ErrMalformed)
	}
	return c, nil
}

// MarshalJSON writes the command back out as a flat object.
func (c Command) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	action, _ := json.Marshal(c.Action)
	buf.WriteString(`"action":`)
	buf.Write(action)
	for _, a := range c.Args {
		key, _ := json.Marshal(a.Key)
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(a.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Values returns the raw argument values in order.
func (c Command) Values() []json.RawMessage {
	out := make([]json.RawMessage, len(c.Args))
	for i, a := range c.Args {
		out[i] = a.Value
	}
	return out
}

// Raw returns the value for key.
func (c Command) Raw(key string) (json.RawMessage, bool) {
	for _, a := range c.Args {
		if a.Key == key {
			return a.Value, true
		}
	}
	return nil, false
}

// Decode unmarshals the value for key into v. It reports false when the key
// is missing or the value does not fit v.
func (c Command) Decode(key string, v any) bool {
	raw, ok := c.Raw(key)
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (c Command) String(key string) (string, bool) {
	var s string
	ok := c.Decode(key, &s)
	return s, ok
}

func (c Command) Bool(key string) (bool, bool) {
	var b bool
	ok := c.Decode(key, &b)
	return b, ok
}

func (c Command) Int(key string) (int, bool) {
	var n int
	ok := c.Decode(key, &n)
	return n, ok
}

// Positional helpers for controller methods.

func StringAt(args []json.RawMessage, i int) (string, bool) {
	var s string
	if i >= len(args) || json.Unmarshal(args[i], &s) != nil {
		return "", false
	}
	return s, true
}

func BoolAt(args []json.RawMessage, i int) (bool, bool) {
	var b bool
	if i >= len(args) || json.Unmarshal(args[i], &b) != nil {
		return false, false
	}
	return b, true
}
