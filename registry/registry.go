// Package registry dispatches inbound chat lines to named command handlers.
// It is the collaborator boundary of the connection core: whatever a handler
// does, Process returns response lines or an error and never lets a panic
// escape into the session.
package registry

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Session is the narrow view of the emitting connection a handler may use.
type Session interface {
	Nick() string
}

// HandlerFunc implements one named command. args are the whitespace-split
// tokens after the command word. Returning no lines means no response.
type HandlerFunc func(ctx context.Context, s Session, channel, nick string, args []string) ([]string, error)

// Processor is what the connection core consumes. A nil error with no lines
// means "no response"; a non-nil error means the collaborator failed and the
// session should send nothing.
type Processor interface {
	Process(ctx context.Context, s Session, channel, nick, text string) ([]string, error)
}

// Registry maps command words to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register adds a handler under name. Registering the same name twice is a
// programming error and panics.
func (r *Registry) Register(name string, fn HandlerFunc) {
	name = strings.ToLower(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("command already registered: %s", name))
	}
	r.handlers[name] = fn
}

// Process parses text as "<command> [args...]", optionally prefixed by the
// bot's own nick ("botnick: command ..."), and dispatches. Unknown commands
// and empty input produce no response and no error.
func (r *Registry) Process(ctx context.Context, s Session, channel, nick, text string) (lines []string, err error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, nil
	}
	if s != nil && strings.EqualFold(strings.TrimRight(fields[0], ":,"), s.Nick()) {
		fields = fields[1:]
		if len(fields) == 0 {
			return nil, nil
		}
	}

	name := strings.ToLower(fields[0])
	r.mu.RLock()
	fn, ok := r.handlers[name]
	r.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	defer func() {
		if p := recover(); p != nil {
			lines = nil
			err = fmt.Errorf("command %q panicked: %v", name, p)
		}
	}()
	return fn(ctx, s, channel, nick, fields[1:])
}

// RegisterBuiltins adds the stock commands every deployment gets.
func RegisterBuiltins(r *Registry) {
	r.Register("ping", func(_ context.Context, _ Session, _, _ string, _ []string) ([]string, error) {
		return []string{"pong"}, nil
	})
}
