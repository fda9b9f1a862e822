// Package signals is the process-wide lifecycle event bus. Sessions publish
// connection and membership events; feature code subscribes without the
// session ever knowing who listens. The bus is an explicitly constructed
// object passed through constructors, not a global.
package signals

import (
	"context"
	"sync"
)

// Kind enumerates the lifecycle events a session can emit.
type Kind int

const (
	Signon Kind = iota
	Join
	Left
	UserJoined
	UserLeft
)

func (k Kind) String() string {
	switch k {
	case Signon:
		return "signon"
	case Join:
		return "join"
	case Left:
		return "left"
	case UserJoined:
		return "user_joined"
	case UserLeft:
		return "user_left"
	}
	return "unknown"
}

// Session is the emitting side of an event, seen through a narrow interface
// so listeners never depend on the connection client directly.
type Session interface {
	ID() string
	Nick() string
}

// Event is an immutable lifecycle notification. Nick and Channel are set only
// for the kinds that carry them.
type Event struct {
	Kind    Kind
	Session Session
	Nick    string
	Channel string
}

// ListenerFunc receives published events. It must not block for long; all
// listeners share one dispatch goroutine.
type ListenerFunc func(Event)

// Bus fans out events to subscribed listeners. Delivery is serialized in
// emission order by a single dispatcher goroutine, so listeners never run
// concurrently with each other and never re-enter the emitting session's
// callback stack. Publishing with zero listeners is a no-op.
type Bus struct {
	mu        sync.RWMutex
	listeners map[Kind][]ListenerFunc
	all       []ListenerFunc
	events    chan Event
}

// NewBus constructs a bus. Run must be started before events are published.
func NewBus() *Bus {
	return &Bus{
		listeners: make(map[Kind][]ListenerFunc),
		events:    make(chan Event, 64),
	}
}

// Subscribe registers fn for one event kind.
func (b *Bus) Subscribe(k Kind, fn ListenerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners[k] = append(b.listeners[k], fn)
}

// SubscribeAll registers fn for every event kind.
func (b *Bus) SubscribeAll(fn ListenerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.all = append(b.all, fn)
}

// Publish enqueues an event for delivery. Fire-and-forget: the caller gets no
// delivery confirmation and no listener errors.
func (b *Bus) Publish(e Event) {
	b.events <- e
}

// Run dispatches queued events until the context is cancelled.
func (b *Bus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.events:
			b.dispatch(e)
		}
	}
}

func (b *Bus) dispatch(e Event) {
	b.mu.RLock()
	kindFns := b.listeners[e.Kind]
	allFns := b.all
	b.mu.RUnlock()

	for _, fn := range kindFns {
		fn(e)
	}
	for _, fn := range allFns {
		fn(e)
	}
}
