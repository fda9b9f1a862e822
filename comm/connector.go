package comm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/onnwee/relaybot/codec"
	"github.com/onnwee/relaybot/wire"
)

// Dialer is the production Connector. Connect schedules one connection
// attempt and returns immediately; dial, session setup, and the loss/failure
// feedback to the factory all happen on the attempt's own goroutine. An
// attempt in flight when the process context ends is simply abandoned.
type Dialer struct {
	ctx      context.Context
	factory  *Factory
	addr     string
	cdc      codec.Codec
	attempts atomic.Int64
}

// NewDialer builds a dialer for addr, bound to the process context.
func NewDialer(ctx context.Context, f *Factory, addr string, cdc codec.Codec) *Dialer {
	return &Dialer{ctx: ctx, factory: f, addr: addr, cdc: cdc}
}

// Connect schedules a connection attempt. Implements Connector.
func (d *Dialer) Connect() {
	go d.run()
}

func (d *Dialer) run() {
	if d.ctx.Err() != nil {
		return
	}
	if d.attempts.Add(1) > 1 {
		// Reconnects wait out the configured delay so a flapping server
		// doesn't turn into a hot dial loop.
		select {
		case <-d.ctx.Done():
			return
		case <-time.After(d.factory.cfg.ReconnectDelay):
		}
	}

	cfg := d.factory.cfg
	client := d.factory.Build(d.addr)
	slog.Info("connecting", slog.String("addr", d.addr), slog.Int64("attempt", d.attempts.Load()))

	conn, err := wire.Dial(d.ctx, wire.Config{
		Addr:      d.addr,
		TLS:       cfg.TLS,
		TLSConfig: nil,
		Nick:      cfg.Nick,
		User:      cfg.Username,
		Realname:  cfg.Realname,
		Password:  cfg.Password,
		Codec:     d.cdc,
		Handler:   client.Handle,
		OnClose: func(reason error) {
			client.Detach(reason)
			if lostErr := d.factory.ConnectionLost(d, reason); lostErr != nil {
				slog.Error("connection lost and reconnect disabled", slog.Any("err", lostErr))
				d.factory.Shutdown()
			}
		},
	})
	if err != nil {
		d.factory.ConnectionFailed(d, err)
		return
	}

	// Bind the session before the read loop starts so no event races the
	// transport attachment.
	client.Attach(d.ctx, conn)
	conn.Start()
}
