// Package telemetry records analytics events. Events go to the structured
// log; nothing leaves the machine.
package telemetry

import (
	"log/slog"
	"sync"
)

type Recorder struct {
	logger *slog.Logger

	mu       sync.Mutex
	identity string
	counts   map[string]int
}

func New(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, counts: make(map[string]int)}
}

// Identify binds later events to account.
func (r *Recorder) Identify(account string) {
	r.mu.Lock()
	r.identity = account
	r.mu.Unlock()
	r.logger.Info("telemetry: identify", "account", account)
}

// Record logs a named event with optional key/value attributes.
func (r *Recorder) Record(event string, args ...any) {
	r.mu.Lock()
	r.counts[event]++
	id := r.identity
	r.mu.Unlock()
	r.logger.Debug("telemetry: "+event, append([]any{"account", id}, args...)...)
}

// Identity returns the account last passed to Identify.
func (r *Recorder) Identity() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// Count returns how many times event was recorded.
func (r *Recorder) Count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[event]
}
