package comm

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/onnwee/relaybot/config"
	"github.com/onnwee/relaybot/registry"
	"github.com/onnwee/relaybot/signals"
	"github.com/onnwee/relaybot/telemetry"
)

// Connector schedules connection attempts. Connect must return promptly; the
// actual dial happens asynchronously.
type Connector interface {
	Connect()
}

// Factory owns the reconnection policy and is the sole creator of sessions.
// Losing an established connection is retried when AutoReconnect is set; a
// connection that never succeeded is always fatal to the process.
type Factory struct {
	cfg      *config.Config
	bus      *signals.Bus
	reg      registry.Processor
	shutdown func()

	mu      sync.RWMutex
	current *Client
}

// NewFactory constructs a factory. shutdown is invoked when a connection
// attempt fails outright; it should stop the process run loop.
func NewFactory(cfg *config.Config, bus *signals.Bus, reg registry.Processor, shutdown func()) *Factory {
	return &Factory{cfg: cfg, bus: bus, reg: reg, shutdown: shutdown}
}

// Build returns a new, unconnected session for addr, bound to this factory.
func (f *Factory) Build(addr string) *Client {
	c := &Client{
		id:       uuid.New(),
		factory:  f,
		cfg:      f.cfg,
		bus:      f.bus,
		reg:      f.reg,
		addr:     addr,
		nickname: f.cfg.Nick,
		channels: NewMembership(),
	}
	c.log = slog.Default().With(
		slog.String("component", "comm"),
		slog.String("session", c.id.String()),
	)
	f.mu.Lock()
	f.current = c
	f.mu.Unlock()
	return c
}

// ConnectionLost handles the loss of an established connection. With
// AutoReconnect the connector is asked to reconnect and nil is returned;
// otherwise the reason is propagated so the owning process can terminate.
func (f *Factory) ConnectionLost(c Connector, reason error) error {
	telemetry.Inc(telemetry.Disconnects)
	if !f.cfg.AutoReconnect {
		return reason
	}
	slog.Info("connection lost, reconnecting", slog.Any("reason", reason))
	telemetry.Inc(telemetry.Reconnects)
	c.Connect()
	return nil
}

// ConnectionFailed handles an attempt that never produced a connection.
// Always fatal: retrying an unreachable or misconfigured endpoint is not
// this layer's job, regardless of AutoReconnect.
func (f *Factory) ConnectionFailed(_ Connector, reason error) {
	slog.Error("connection failed", slog.Any("err", reason))
	f.Shutdown()
}

// Shutdown invokes the factory's shutdown hook, stopping the process run
// loop. Safe to call with no hook configured.
func (f *Factory) Shutdown() {
	if f.shutdown != nil {
		f.shutdown()
	}
}

// Status accessors for the HTTP surface. They reflect the most recently
// built session.

// Connected reports whether the current session has a live transport.
func (f *Factory) Connected() bool {
	if c := f.currentClient(); c != nil {
		return c.connectedNow()
	}
	return false
}

// Nick returns the current session's nickname, or "" before the first build.
func (f *Factory) Nick() string {
	if c := f.currentClient(); c != nil {
		return c.Nick()
	}
	return ""
}

// Channels returns the current session's joined channels.
func (f *Factory) Channels() []string {
	if c := f.currentClient(); c != nil {
		return c.Channels()
	}
	return nil
}

// SessionID returns the current session's id, or "" before the first build.
func (f *Factory) SessionID() string {
	if c := f.currentClient(); c != nil {
		return c.ID()
	}
	return ""
}

func (f *Factory) currentClient() *Client {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}
