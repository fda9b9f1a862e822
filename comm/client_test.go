package comm

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"gopkg.in/irc.v4"

	"github.com/onnwee/relaybot/config"
	"github.com/onnwee/relaybot/registry"
	"github.com/onnwee/relaybot/signals"
)

type fakeTransport struct {
	msgs []*irc.Message
}

func (f *fakeTransport) WriteMessage(m *irc.Message) error {
	f.msgs = append(f.msgs, m)
	return nil
}

type fakeProcessor struct {
	lines []string
	err   error

	gotChannel string
	gotNick    string
	gotText    string
	calls      int
}

func (f *fakeProcessor) Process(_ context.Context, _ registry.Session, channel, nick, text string) ([]string, error) {
	f.calls++
	f.gotChannel = channel
	f.gotNick = nick
	f.gotText = text
	return f.lines, f.err
}

// newTestSession builds a connected client with a fake transport, a running
// bus whose events land on the returned channel, and the given processor.
func newTestSession(t *testing.T, cfg *config.Config, proc registry.Processor) (*Client, *fakeTransport, <-chan signals.Event) {
	t.Helper()
	bus := signals.NewBus()
	events := make(chan signals.Event, 16)
	bus.SubscribeAll(func(e signals.Event) { events <- e })
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go bus.Run(ctx)

	f := NewFactory(cfg, bus, proc, nil)
	c := f.Build("irc.example.org:6667")
	tr := &fakeTransport{}
	c.Attach(ctx, tr)
	return c, tr, events
}

func waitEvent(t *testing.T, events <-chan signals.Event) signals.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return signals.Event{}
	}
}

func expectNoEvent(t *testing.T, events <-chan signals.Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %v (channel=%q nick=%q)", e.Kind, e.Channel, e.Nick)
	case <-time.After(100 * time.Millisecond):
	}
}

func mustMsg(t *testing.T, raw string) *irc.Message {
	t.Helper()
	m, err := irc.ParseMessage(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return m
}

func testConfig() *config.Config {
	return &config.Config{
		Server: "irc.example.org:6667",
		Nick:   "relaybot",
		Channels: []config.Channel{
			{Name: "#bots"},
			{Name: "#secret", Key: "hunter2"},
			{Name: "#baz ☃"},
		},
		AutoReconnect:  true,
		ReconnectDelay: time.Millisecond,
	}
}

func TestParseNick(t *testing.T) {
	cases := []struct {
		source string
		want   string
	}{
		{"foo!~foobar@localhost", "foo"},
		{"☃!~snowman@localhost", "☃"},
		{"foo", "foo"},
	}
	for _, tc := range cases {
		if got := ParseNick(tc.source); got != tc.want {
			t.Errorf("ParseNick(%q) = %q, want %q", tc.source, got, tc.want)
		}
	}
}

func TestAlterNick(t *testing.T) {
	pattern := regexp.MustCompile(`^foo_\d{4}$`)
	cases := []string{
		"foo",      // first collision
		"foo_1234", // already renamed once: suffix replaced, not stacked
		"foo_bar",  // underscore in the base is truncated too
	}
	for _, attempted := range cases {
		if got := alterNick(attempted); !pattern.MatchString(got) {
			t.Errorf("alterNick(%q) = %q, want match for %v", attempted, got, pattern)
		}
	}
}

func TestSignonJoinsConfiguredChannels(t *testing.T) {
	c, tr, events := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(mustMsg(t, ":irc.example.org 001 relaybot :Welcome"))

	if len(tr.msgs) != 3 {
		t.Fatalf("wrote %d messages, want 3 JOINs", len(tr.msgs))
	}
	wantParams := [][]string{
		{"#bots"},
		{"#secret", "hunter2"},
		{"#baz ☃"},
	}
	for i, m := range tr.msgs {
		if m.Command != "JOIN" {
			t.Errorf("message %d command = %q, want JOIN", i, m.Command)
		}
		if len(m.Params) != len(wantParams[i]) {
			t.Fatalf("message %d params = %v, want %v", i, m.Params, wantParams[i])
		}
		for j, p := range wantParams[i] {
			if m.Params[j] != p {
				t.Errorf("message %d param %d = %q, want %q", i, j, m.Params[j], p)
			}
		}
	}

	e := waitEvent(t, events)
	if e.Kind != signals.Signon {
		t.Errorf("event kind = %v, want signon", e.Kind)
	}
	if e.Session.ID() != c.ID() {
		t.Errorf("event session = %q, want %q", e.Session.ID(), c.ID())
	}
	expectNoEvent(t, events)
}

func TestNickCollisionRenames(t *testing.T) {
	c, tr, _ := newTestSession(t, testConfig(), &fakeProcessor{})
	pattern := regexp.MustCompile(`^relaybot_\d{4}$`)

	c.Handle(mustMsg(t, ":irc.example.org 433 * relaybot :Nickname is already in use"))

	first := c.Nick()
	if !pattern.MatchString(first) {
		t.Fatalf("nick after collision = %q, want match for %v", first, pattern)
	}
	if len(tr.msgs) != 1 || tr.msgs[0].Command != "NICK" || tr.msgs[0].Params[0] != first {
		t.Fatalf("expected one NICK %s, got %v", first, tr.msgs)
	}

	// A second collision against the renamed nick must not stack suffixes.
	c.Handle(mustMsg(t, ":irc.example.org 433 * "+first+" :Nickname is already in use"))
	second := c.Nick()
	if !pattern.MatchString(second) {
		t.Errorf("nick after second collision = %q, want match for %v", second, pattern)
	}
}

func TestNickCollisionWithoutParams(t *testing.T) {
	c, _, _ := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(&irc.Message{Command: "433"})

	if want := regexp.MustCompile(`^relaybot_\d{4}$`); !want.MatchString(c.Nick()) {
		t.Errorf("nick = %q, want match for %v", c.Nick(), want)
	}
}

func TestOwnJoinUpdatesMembership(t *testing.T) {
	c, _, events := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(mustMsg(t, ":relaybot!~relaybot@localhost JOIN #bots"))

	if !c.InChannel("#bots") {
		t.Fatal("expected membership in #bots")
	}
	e := waitEvent(t, events)
	if e.Kind != signals.Join || e.Channel != "#bots" {
		t.Errorf("event = %v %q, want join #bots", e.Kind, e.Channel)
	}

	// Duplicate confirmation is idempotent.
	c.Handle(mustMsg(t, ":relaybot!~relaybot@localhost JOIN #bots"))
	if got := c.Channels(); len(got) != 1 {
		t.Errorf("channels = %v, want exactly one", got)
	}
}

func TestOwnPartUpdatesMembership(t *testing.T) {
	c, _, events := newTestSession(t, testConfig(), &fakeProcessor{})
	c.Handle(mustMsg(t, ":relaybot!~relaybot@localhost JOIN #bots"))
	waitEvent(t, events)

	c.Handle(mustMsg(t, ":relaybot!~relaybot@localhost PART #bots"))

	if c.InChannel("#bots") {
		t.Error("still in #bots after part")
	}
	e := waitEvent(t, events)
	if e.Kind != signals.Left || e.Channel != "#bots" {
		t.Errorf("event = %v %q, want left #bots", e.Kind, e.Channel)
	}
}

func TestKickRemovesOnlyOwnNick(t *testing.T) {
	c, _, events := newTestSession(t, testConfig(), &fakeProcessor{})
	c.Handle(mustMsg(t, ":relaybot!~relaybot@localhost JOIN #bots"))
	waitEvent(t, events)

	// Someone else getting kicked leaves our membership alone.
	c.Handle(mustMsg(t, ":op!~op@localhost KICK #bots someone :bye"))
	if !c.InChannel("#bots") {
		t.Fatal("membership lost on another user's kick")
	}
	expectNoEvent(t, events)

	c.Handle(mustMsg(t, ":op!~op@localhost KICK #bots relaybot :flooding"))
	if c.InChannel("#bots") {
		t.Error("still in #bots after kick")
	}
	e := waitEvent(t, events)
	if e.Kind != signals.Left || e.Channel != "#bots" {
		t.Errorf("event = %v %q, want left #bots", e.Kind, e.Channel)
	}
}

func TestOtherUsersJoinAndPart(t *testing.T) {
	c, _, events := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(mustMsg(t, ":alice!~alice@localhost JOIN #bots"))
	e := waitEvent(t, events)
	if e.Kind != signals.UserJoined || e.Nick != "alice" || e.Channel != "#bots" {
		t.Errorf("event = %v %q %q, want user_joined alice #bots", e.Kind, e.Nick, e.Channel)
	}
	if c.InChannel("#bots") {
		t.Error("another user's join changed own membership")
	}

	c.Handle(mustMsg(t, ":alice!~alice@localhost PART #bots"))
	e = waitEvent(t, events)
	if e.Kind != signals.UserLeft || e.Nick != "alice" || e.Channel != "#bots" {
		t.Errorf("event = %v %q %q, want user_left alice #bots", e.Kind, e.Nick, e.Channel)
	}
}

func TestInviteJoinsOnlyForOwnNick(t *testing.T) {
	c, tr, _ := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(mustMsg(t, ":alice!~alice@localhost INVITE someoneelse :#private"))
	if len(tr.msgs) != 0 {
		t.Fatalf("invite for another nick produced writes: %v", tr.msgs)
	}

	c.Handle(mustMsg(t, ":alice!~alice@localhost INVITE relaybot :#private"))
	if len(tr.msgs) != 1 || tr.msgs[0].Command != "JOIN" || tr.msgs[0].Params[0] != "#private" {
		t.Fatalf("expected JOIN #private, got %v", tr.msgs)
	}
}

func TestUnknownCommandIgnored(t *testing.T) {
	c, tr, events := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Handle(mustMsg(t, ":irc.example.org NOTICE relaybot :server notice"))
	c.Handle(mustMsg(t, ":irc.example.org 372 relaybot :- motd line"))

	if len(tr.msgs) != 0 {
		t.Errorf("unexpected writes: %v", tr.msgs)
	}
	expectNoEvent(t, events)
}

func TestPrivmsgChannelResponse(t *testing.T) {
	proc := &fakeProcessor{lines: []string{"line1", "line2"}}
	c, tr, _ := newTestSession(t, testConfig(), proc)

	c.Handle(mustMsg(t, ":alice!~alice@localhost PRIVMSG #bots :relaybot ping"))

	if proc.calls != 1 {
		t.Fatalf("processor called %d times, want 1", proc.calls)
	}
	if proc.gotChannel != "#bots" || proc.gotNick != "alice" || proc.gotText != "relaybot ping" {
		t.Errorf("processor got (%q, %q, %q)", proc.gotChannel, proc.gotNick, proc.gotText)
	}
	if len(tr.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(tr.msgs))
	}
	m := tr.msgs[0]
	if m.Command != "PRIVMSG" || m.Params[0] != "#bots" {
		t.Errorf("response target = %v, want PRIVMSG #bots", m.Params)
	}
	// Multiple response lines go out as one message.
	if got := m.Trailing(); got != "line1\nline2" {
		t.Errorf("response text = %q, want joined lines", got)
	}
}

func TestPrivmsgDirectRespondsToSender(t *testing.T) {
	proc := &fakeProcessor{lines: []string{"pong"}}
	c, tr, _ := newTestSession(t, testConfig(), proc)

	c.Handle(mustMsg(t, ":alice!~alice@localhost PRIVMSG relaybot :ping"))

	if len(tr.msgs) != 1 || tr.msgs[0].Params[0] != "alice" {
		t.Fatalf("direct message response = %v, want PRIVMSG to alice", tr.msgs)
	}
}

func TestPrivmsgNoResponseOnErrorOrSilence(t *testing.T) {
	proc := &fakeProcessor{err: errors.New("handler blew up")}
	c, tr, _ := newTestSession(t, testConfig(), proc)
	c.Handle(mustMsg(t, ":alice!~alice@localhost PRIVMSG #bots :relaybot boom"))
	if len(tr.msgs) != 0 {
		t.Errorf("error result still produced writes: %v", tr.msgs)
	}

	proc2 := &fakeProcessor{}
	c2, tr2, _ := newTestSession(t, testConfig(), proc2)
	c2.Handle(mustMsg(t, ":alice!~alice@localhost PRIVMSG #bots :just chatting"))
	if proc2.calls != 1 {
		t.Errorf("processor called %d times, want 1", proc2.calls)
	}
	if len(tr2.msgs) != 0 {
		t.Errorf("empty result still produced writes: %v", tr2.msgs)
	}
}

func TestWritesDroppedWhenDetached(t *testing.T) {
	c, tr, _ := newTestSession(t, testConfig(), &fakeProcessor{})
	c.Detach(errors.New("connection reset"))

	c.Msg("#bots", "hello")
	c.Join("#bots", "")

	if len(tr.msgs) != 0 {
		t.Errorf("detached session still wrote: %v", tr.msgs)
	}
}

func TestMeSendsCTCPAction(t *testing.T) {
	c, tr, _ := newTestSession(t, testConfig(), &fakeProcessor{})

	c.Me("#bots", "waves")

	if len(tr.msgs) != 1 {
		t.Fatalf("wrote %d messages, want 1", len(tr.msgs))
	}
	if got := tr.msgs[0].Trailing(); got != "\x01ACTION waves\x01" {
		t.Errorf("action text = %q", got)
	}
}
