// Package server exposes the bot's HTTP surface: health, connection status,
// and Prometheus metrics. It is a read-only view; nothing here can act on
// the connection.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusSource is the view of the connection layer the status endpoint
// reads. Implemented by *comm.Factory.
type StatusSource interface {
	Connected() bool
	Nick() string
	Channels() []string
	SessionID() string
}

type statusResponse struct {
	Connected bool     `json:"connected"`
	Nick      string   `json:"nick"`
	Channels  []string `json:"channels"`
	SessionID string   `json:"session_id"`
}

// NewMux returns the HTTP handler with all routes.
func NewMux(src StatusSource) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			Connected: src.Connected(),
			Nick:      src.Nick(),
			Channels:  src.Channels(),
			SessionID: src.SessionID(),
		}
		if resp.Channels == nil {
			resp.Channels = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.Error("failed to encode status response", slog.Any("err", err))
		}
	})

	return mux
}
