package bucket

import (
	"context"
	"sync"
)

// Emitter fans events out to subscriptions. Each subscription queues
// without bound, so a slow consumer delays but never loses events.
type Emitter[T any] struct {
	mu   sync.Mutex
	subs map[*Subscription[T]]struct{}
}

// Subscribe registers a subscription that lives until ctx is done or it is
// closed.
func (e *Emitter[T]) Subscribe(ctx context.Context) *Subscription[T] {
	s := &Subscription[T]{
		out:  make(chan Event[T]),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	s.detach = func() { e.remove(s) }

	e.mu.Lock()
	if e.subs == nil {
		e.subs = make(map[*Subscription[T]]struct{})
	}
	e.subs[s] = struct{}{}
	e.mu.Unlock()

	go s.pump()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
	return s
}

// Emit queues ev on every live subscription.
func (e *Emitter[T]) Emit(ev Event[T]) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for s := range e.subs {
		s.push(ev)
	}
}

// Len reports the number of live subscriptions.
func (e *Emitter[T]) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Emitter[T]) remove(s *Subscription[T]) {
	e.mu.Lock()
	delete(e.subs, s)
	e.mu.Unlock()
}

// Subscription delivers events in emission order on Events. The channel is
// closed after Close.
type Subscription[T any] struct {
	out    chan Event[T]
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
	detach func()

	mu    sync.Mutex
	queue []Event[T]
}

func (s *Subscription[T]) Events() <-chan Event[T] {
	return s.out
}

// Close releases the subscription. Safe to call more than once.
func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		if s.detach != nil {
			s.detach()
		}
		close(s.done)
	})
}

func (s *Subscription[T]) push(ev Event[T]) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription[T]) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue[0] = Event[T]{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
