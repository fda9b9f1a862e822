// Package wire owns the raw IRC transport: dialing, registration handshake,
// the line read loop, and codec-encoded writes. Message grammar (parsing and
// formatting) is delegated to gopkg.in/irc.v4; this package never interprets
// commands beyond the automatic PING reply. Everything above the wire —
// membership, identity, routing — lives in the comm package.
package wire

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"
	"strings"
	"sync"
	"time"

	"gopkg.in/irc.v4"

	"github.com/onnwee/relaybot/codec"
)

const defaultDialTimeout = 15 * time.Second

// Config describes one connection attempt.
type Config struct {
	Addr      string
	TLS       bool
	TLSConfig *tls.Config

	Nick     string
	User     string
	Realname string
	Password string

	Codec codec.Codec

	// Handler receives every parsed inbound message, one at a time, in
	// arrival order. Required.
	Handler func(*irc.Message)

	// OnClose is invoked exactly once when the read loop terminates, with
	// the error that ended it. Optional.
	OnClose func(error)

	DialTimeout time.Duration
}

// Conn is one live wire connection. Create with Dial, then Start the read
// loop once the owner has finished binding its state to the connection.
type Conn struct {
	cfg  Config
	conn net.Conn
	rd   *bufio.Reader

	wmu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
}

// Dial establishes the transport and sends the registration handshake
// (PASS/NICK/USER). The read loop is not running yet; call Start once the
// handler is ready to receive events.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	timeout := cfg.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: timeout}

	var nc net.Conn
	var err error
	if cfg.TLS {
		td := &tls.Dialer{NetDialer: dialer, Config: cfg.TLSConfig}
		nc, err = td.DialContext(ctx, "tcp", cfg.Addr)
	} else {
		nc, err = dialer.DialContext(ctx, "tcp", cfg.Addr)
	}
	if err != nil {
		return nil, err
	}

	c := newConn(nc, cfg)
	if err := c.register(); err != nil {
		nc.Close()
		return nil, err
	}

	// Abandon the connection when the process context ends. The read loop
	// unblocks on the closed conn and reports through OnClose as usual.
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()

	return c, nil
}

func newConn(nc net.Conn, cfg Config) *Conn {
	return &Conn{
		cfg:  cfg,
		conn: nc,
		rd:   bufio.NewReader(nc),
		done: make(chan struct{}),
	}
}

// register performs the IRC registration handshake.
func (c *Conn) register() error {
	if c.cfg.Password != "" {
		if err := c.WriteMessage(&irc.Message{Command: "PASS", Params: []string{c.cfg.Password}}); err != nil {
			return err
		}
	}
	if err := c.WriteMessage(&irc.Message{Command: "NICK", Params: []string{c.cfg.Nick}}); err != nil {
		return err
	}
	user := c.cfg.User
	if user == "" {
		user = c.cfg.Nick
	}
	real := c.cfg.Realname
	if real == "" {
		real = user
	}
	return c.WriteMessage(&irc.Message{Command: "USER", Params: []string{user, "0", "*", real}})
}

// Start launches the read loop. Call exactly once.
func (c *Conn) Start() {
	go c.readLoop()
}

func (c *Conn) readLoop() {
	var cause error
	for {
		raw, err := c.rd.ReadString('\n')
		if err != nil {
			cause = err
			break
		}
		line := c.cfg.Codec.Decode([]byte(strings.TrimRight(raw, "\r\n")))
		if line == "" {
			continue
		}
		m, err := irc.ParseMessage(line)
		if err != nil {
			continue
		}
		if m.Command == "PING" {
			// Reply before the handler runs so slow handlers can't
			// starve the server's liveness check.
			_ = c.WriteMessage(&irc.Message{Command: "PONG", Params: m.Params})
		}
		c.cfg.Handler(m)
	}
	c.shutdown(cause)
}

// WriteMessage encodes and sends a single message. Safe for concurrent use.
func (c *Conn) WriteMessage(m *irc.Message) error {
	payload := append(c.cfg.Codec.Encode(m.String()), '\r', '\n')
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.conn.Write(payload)
	return err
}

// Close tears down the transport. The read loop exits and OnClose fires.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.conn.Close()
		close(c.done)
		if c.cfg.OnClose != nil {
			c.cfg.OnClose(err)
		}
	})
}
