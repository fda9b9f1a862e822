// Package config loads environment variables and provides a typed Config
// used across the bot. It applies sensible defaults so the binary can run
// locally with minimal setup; required connection settings are checked by
// ValidateConnectReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Channel is one configured autojoin entry: a channel name and an optional
// join key.
type Channel struct {
	Name string
	Key  string
}

type Config struct {
	// IRC connection
	Server   string
	TLS      bool
	Nick     string
	Username string
	Realname string
	Password string
	Channels []Channel

	// Reconnect policy
	AutoReconnect  bool
	ReconnectDelay time.Duration

	// Wire text encoding (utf-8, latin-1, windows-1252)
	Charset string

	// Event archive; empty disables it
	DBDsn string

	// HTTP surface (health, status, metrics)
	HTTPAddr string
}

// Load reads environment variables and applies defaults. Missing optional
// variables disable features (e.g., the Postgres event archive).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Server = os.Getenv("IRC_SERVER")
	cfg.TLS = envBool("IRC_TLS", false)

	cfg.Nick = os.Getenv("IRC_NICK")
	if cfg.Nick == "" {
		cfg.Nick = "relaybot"
	}
	cfg.Username = os.Getenv("IRC_USERNAME")
	if cfg.Username == "" {
		cfg.Username = cfg.Nick
	}
	cfg.Realname = os.Getenv("IRC_REALNAME")
	if cfg.Realname == "" {
		cfg.Realname = cfg.Username
	}
	cfg.Password = os.Getenv("IRC_PASSWORD")
	cfg.Channels = ParseChannels(os.Getenv("IRC_CHANNELS"))

	cfg.AutoReconnect = envBool("AUTO_RECONNECT", true)
	cfg.ReconnectDelay = 5 * time.Second
	if v := os.Getenv("RECONNECT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("invalid RECONNECT_DELAY (duration): %q", v)
		}
		cfg.ReconnectDelay = d
	}

	cfg.Charset = os.Getenv("WIRE_CHARSET")
	if cfg.Charset == "" {
		cfg.Charset = "utf-8"
	}

	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8089"
	}

	return cfg, nil
}

// ParseChannels parses the IRC_CHANNELS value: a comma-separated, ordered
// list of entries, each "#channel" or "#channel:key". Order is preserved
// exactly; joins are issued in this order at signon.
func ParseChannels(raw string) []Channel {
	var out []Channel
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, key, _ := strings.Cut(entry, ":")
		out = append(out, Channel{Name: name, Key: key})
	}
	return out
}

// ValidateConnectReady checks required fields for opening the IRC connection.
func (c *Config) ValidateConnectReady() error {
	if c.Server == "" || c.Nick == "" {
		return fmt.Errorf("missing irc env: require IRC_SERVER, IRC_NICK")
	}
	return nil
}

func envBool(name string, def bool) bool {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
