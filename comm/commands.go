package comm

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/irc.v4"

	"github.com/onnwee/relaybot/signals"
	"github.com/onnwee/relaybot/telemetry"
)

// commandKind enumerates the protocol commands the session reacts to.
// Everything else maps to cmdNone and is silently ignored.
type commandKind int

const (
	cmdNone commandKind = iota
	cmdWelcome
	cmdNickInUse
	cmdJoin
	cmdPart
	cmdKick
	cmdPrivmsg
	cmdInvite
)

func kindOf(command string) commandKind {
	switch strings.ToUpper(command) {
	case "001": // RPL_WELCOME
		return cmdWelcome
	case "433": // ERR_NICKNAMEINUSE
		return cmdNickInUse
	case "JOIN":
		return cmdJoin
	case "PART":
		return cmdPart
	case "KICK":
		return cmdKick
	case "PRIVMSG":
		return cmdPrivmsg
	case "INVITE":
		return cmdInvite
	}
	return cmdNone
}

var commandTable = map[commandKind]func(*Client, *irc.Message){
	cmdWelcome:   (*Client).handleWelcome,
	cmdNickInUse: (*Client).handleNickInUse,
	cmdJoin:      (*Client).handleJoin,
	cmdPart:      (*Client).handlePart,
	cmdKick:      (*Client).handleKick,
	cmdPrivmsg:   (*Client).handlePrivmsg,
	cmdInvite:    (*Client).handleInvite,
}

// Handle receives every parsed inbound message from the wire, one at a time
// in arrival order.
func (c *Client) Handle(m *irc.Message) {
	telemetry.Inc(telemetry.MessagesIn)
	if h, ok := commandTable[kindOf(m.Command)]; ok {
		h(c, m)
	}
}

// handleWelcome fires once registration completes: join the configured
// channels in configuration order, then announce signon.
func (c *Client) handleWelcome(_ *irc.Message) {
	for _, ch := range c.cfg.Channels {
		c.Join(ch.Name, ch.Key)
	}
	c.log.Info("signed on", slog.String("nick", c.Nick()), slog.Int("channels", len(c.cfg.Channels)))
	c.publish(signals.Signon, "", "")
}

// handleNickInUse recovers from a nickname collision by renaming. Not an
// error; the session continues under the new identity.
func (c *Client) handleNickInUse(m *irc.Message) {
	attempted := c.Nick()
	if len(m.Params) >= 2 {
		attempted = m.Params[1]
	}
	next := alterNick(attempted)
	telemetry.Inc(telemetry.NickCollisions)
	c.log.Warn("nick in use, renaming", slog.String("attempted", attempted), slog.String("next", next))
	c.SetNick(next)
}

func (c *Client) handleJoin(m *irc.Message) {
	if len(m.Params) < 1 {
		return
	}
	channel := m.Params[0]
	nick := sourceNick(m)
	if nick != c.Nick() {
		c.publish(signals.UserJoined, nick, channel)
		return
	}
	c.mu.Lock()
	c.channels.Add(channel)
	n := c.channels.Len()
	c.mu.Unlock()
	telemetry.SetJoinedChannels(n)
	c.log.Info("joined channel", slog.String("channel", channel))
	c.publish(signals.Join, "", channel)
}

func (c *Client) handlePart(m *irc.Message) {
	if len(m.Params) < 1 {
		return
	}
	channel := m.Params[0]
	nick := sourceNick(m)
	if nick != c.Nick() {
		c.publish(signals.UserLeft, nick, channel)
		return
	}
	c.removeChannel(channel)
	c.log.Info("left channel", slog.String("channel", channel))
	c.publish(signals.Left, "", channel)
}

// handleKick treats a kick exactly like a voluntary part as far as
// membership is concerned; only the log line differs.
func (c *Client) handleKick(m *irc.Message) {
	if len(m.Params) < 2 {
		return
	}
	channel, victim := m.Params[0], m.Params[1]
	if victim != c.Nick() {
		return
	}
	c.removeChannel(channel)
	c.log.Warn("kicked from channel",
		slog.String("channel", channel),
		slog.String("by", sourceNick(m)),
		slog.String("reason", m.Trailing()),
	)
	c.publish(signals.Left, "", channel)
}

func (c *Client) removeChannel(channel string) {
	c.mu.Lock()
	c.channels.Remove(channel)
	n := c.channels.Len()
	c.mu.Unlock()
	telemetry.SetJoinedChannels(n)
}

// handleInvite joins only on invites addressed to this session's current
// nickname; invites for anyone else are ignored.
func (c *Client) handleInvite(m *irc.Message) {
	if len(m.Params) < 2 {
		return
	}
	invitee, channel := m.Params[0], m.Params[1]
	if invitee != c.Nick() {
		return
	}
	c.log.Info("invited to channel", slog.String("channel", channel), slog.String("by", sourceNick(m)))
	c.Join(channel, "")
}

// handlePrivmsg routes an inbound chat line through the command registry. A
// direct message (target == own nick) is answered to the sender; a channel
// message is answered to the channel. Registry failures are logged and
// produce no response; the session keeps processing.
func (c *Client) handlePrivmsg(m *irc.Message) {
	if len(m.Params) < 2 {
		return
	}
	target := m.Params[0]
	text := m.Trailing()
	nick := sourceNick(m)

	respondTo := target
	if target == c.Nick() {
		respondTo = nick
	}

	ctx := c.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := telemetry.StartSpan(ctx, "relaybot/comm", "registry.process",
		attribute.String("irc.target", target),
		attribute.String("irc.nick", nick),
	)
	defer span.End()

	lines, err := c.reg.Process(ctx, c, target, nick, text)
	if err != nil {
		telemetry.RecordError(span, err)
		c.log.Warn("command processing failed", slog.String("nick", nick), slog.Any("err", err))
		return
	}
	telemetry.SetSpanSuccess(span)
	if len(lines) == 0 {
		return
	}
	c.Msg(respondTo, strings.Join(lines, "\n"))
}
