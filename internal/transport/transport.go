// Package transport carries commands from the host process into the
// controller and notifications back out. The implementation is picked once
// at startup.
package transport

// Transport is the host channel. Commands delivers raw command payloads;
// Send publishes a notification on a named channel.
type Transport interface {
	Commands() <-chan []byte
	Send(channel string, v any) error
	Close() error
}

// Envelope is the wire form of an outbound notification.
type Envelope struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// NoOp is used when no host is attached. Commands never delivers.
type NoOp struct{}

func (NoOp) Commands() <-chan []byte          { return nil }
func (NoOp) Send(channel string, v any) error { return nil }
func (NoOp) Close() error                     { return nil }
