// Package telemetry provides Prometheus metrics, OpenTelemetry tracing setup,
// and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	Connects       prometheus.Counter
	Disconnects    prometheus.Counter
	Reconnects     prometheus.Counter
	MessagesIn     prometheus.Counter
	MessagesOut    prometheus.Counter
	NickCollisions prometheus.Counter

	// Gauges
	ConnectedGauge prometheus.Gauge // 1=connected,0=not
	JoinedChannels prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		Connects = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_connects_total", Help: "Number of established IRC connections"})
		Disconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_disconnects_total", Help: "Number of lost IRC connections"})
		Reconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_reconnects_total", Help: "Number of reconnect attempts scheduled"})
		MessagesIn = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_messages_in_total", Help: "Number of inbound protocol messages handled"})
		MessagesOut = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_messages_out_total", Help: "Number of outbound protocol messages sent"})
		NickCollisions = promauto.NewCounter(prometheus.CounterOpts{Name: "irc_nick_collisions_total", Help: "Number of nickname collisions resolved by renaming"})
		ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "irc_connected", Help: "Connection state connected=1 not=0"})
		JoinedChannels = promauto.NewGauge(prometheus.GaugeOpts{Name: "irc_joined_channels", Help: "Current number of joined channels"})
	})
}

// Inc increments a counter if metrics are initialized.
func Inc(c prometheus.Counter) {
	if c != nil {
		c.Inc()
	}
}

// SetConnected sets the connection gauge to 1 if connected else 0.
func SetConnected(connected bool) {
	if ConnectedGauge != nil {
		if connected {
			ConnectedGauge.Set(1)
		} else {
			ConnectedGauge.Set(0)
		}
	}
}

// SetJoinedChannels records the current joined channel count.
func SetJoinedChannels(n int) {
	if JoinedChannels != nil {
		JoinedChannels.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with a corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
