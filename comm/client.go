// Package comm is the connection core of the bot: the session state machine,
// channel membership, nickname collision recovery, and the reconnection
// policy. It sits between the wire-level protocol engine below and the
// command registry and lifecycle listeners above. Sessions are driven one
// protocol callback at a time by the transport; session state needs no
// internal ordering beyond that, and the small mutex on Client exists only so
// the HTTP status surface can read a live session from another goroutine.
package comm

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/irc.v4"

	"github.com/onnwee/relaybot/config"
	"github.com/onnwee/relaybot/registry"
	"github.com/onnwee/relaybot/signals"
	"github.com/onnwee/relaybot/telemetry"
)

// Transport is the outbound half of a wire connection. The production
// implementation is *wire.Conn.
type Transport interface {
	WriteMessage(*irc.Message) error
}

// Client is one session: one live connection's identity, membership, and
// event handling. Created by Factory.Build, bound to a transport with Attach,
// and discarded when the connection is lost.
type Client struct {
	id      uuid.UUID
	factory *Factory
	cfg     *config.Config
	bus     *signals.Bus
	reg     registry.Processor
	addr    string
	log     *slog.Logger

	ctx context.Context

	mu        sync.RWMutex
	nickname  string
	channels  *Membership
	connected bool
	tr        Transport
}

// ParseNick extracts the nick from a full sender descriptor
// ("nick!user@host"). Correct for non-ASCII nicks.
func ParseNick(source string) string {
	return irc.ParsePrefix(source).Name
}

// ID returns the session id.
func (c *Client) ID() string { return c.id.String() }

// Factory returns the factory that built this session.
func (c *Client) Factory() *Factory { return c.factory }

// Addr returns the target address this session was built for.
func (c *Client) Addr() string { return c.addr }

// Nick returns the most recently confirmed identity.
func (c *Client) Nick() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname
}

// Channels returns the confirmed joined channels, sorted.
func (c *Client) Channels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels.List()
}

// InChannel reports whether the session has a confirmed join for channel.
func (c *Client) InChannel(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channels.Has(channel)
}

func (c *Client) connectedNow() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Attach binds the session to a live transport. Call before the transport's
// read loop starts delivering events.
func (c *Client) Attach(ctx context.Context, tr Transport) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = telemetry.WithCorrelation(ctx, c.id.String())
	c.mu.Lock()
	c.tr = tr
	c.connected = true
	c.mu.Unlock()
	telemetry.Inc(telemetry.Connects)
	telemetry.SetConnected(true)
	c.log.Info("connected", slog.String("addr", c.addr))
}

// Detach records the loss of the transport. Session state is discarded with
// the session; nothing persists across connections.
func (c *Client) Detach(reason error) {
	c.mu.Lock()
	c.tr = nil
	c.connected = false
	c.mu.Unlock()
	telemetry.SetConnected(false)
	telemetry.SetJoinedChannels(0)
	c.log.Info("disconnected", slog.Any("reason", reason))
}

// Msg sends text to a channel or nick.
func (c *Client) Msg(target, text string) {
	c.write(&irc.Message{Command: "PRIVMSG", Params: []string{target, text}})
}

// Me sends an action ("/me") to a channel or nick.
func (c *Client) Me(target, text string) {
	c.write(&irc.Message{Command: "PRIVMSG", Params: []string{target, "\x01ACTION " + text + "\x01"}})
}

// Join requests to join a channel, with an optional key. Membership is only
// updated when the server confirms.
func (c *Client) Join(channel, key string) {
	params := []string{channel}
	if key != "" {
		params = append(params, key)
	}
	c.write(&irc.Message{Command: "JOIN", Params: params})
}

// Leave requests to leave a channel, with an optional reason.
func (c *Client) Leave(channel, reason string) {
	params := []string{channel}
	if reason != "" {
		params = append(params, reason)
	}
	c.write(&irc.Message{Command: "PART", Params: params})
}

// SetNick requests a new nickname and adopts it as the session identity.
func (c *Client) SetNick(nick string) {
	c.mu.Lock()
	c.nickname = nick
	c.mu.Unlock()
	c.write(&irc.Message{Command: "NICK", Params: []string{nick}})
}

// write sends one message through the transport. Fire-and-forget: failures
// are logged, delivery is not tracked.
func (c *Client) write(m *irc.Message) {
	c.mu.RLock()
	tr := c.tr
	c.mu.RUnlock()
	if tr == nil {
		c.log.Debug("dropping write, not connected", slog.String("command", m.Command))
		return
	}
	if err := tr.WriteMessage(m); err != nil {
		c.log.Warn("write failed", slog.String("command", m.Command), slog.Any("err", err))
		return
	}
	telemetry.Inc(telemetry.MessagesOut)
}

// alterNick resolves a nickname collision: strip any existing disambiguator
// (everything from the first underscore) and append a fresh numeric suffix,
// so repeated collisions never stack suffixes. A base nick that legitimately
// contains an underscore is truncated too; known quirk, kept as observed.
func alterNick(attempted string) string {
	base := attempted
	if i := strings.Index(attempted, "_"); i >= 0 {
		base = attempted[:i]
	}
	return fmt.Sprintf("%s_%d", base, rand.IntN(9000)+1000)
}

func (c *Client) publish(kind signals.Kind, nick, channel string) {
	c.bus.Publish(signals.Event{Kind: kind, Session: c, Nick: nick, Channel: channel})
}

func sourceNick(m *irc.Message) string {
	if m.Prefix == nil {
		return ""
	}
	return m.Name
}
