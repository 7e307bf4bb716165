// Package config parses process configuration from CLI flags with an
// environment-variable fallback per field (explicit flag, then env var,
// then default), following the resolution order
// original_source/src/config.rs expresses with clap's `env = "..."`
// attribute on every field.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the complete process configuration surface.
type Config struct {
	Bind string

	BetfairHost string
	BetfairPort int

	UpstreamMaxFrameBytes int
	UpstreamConnectTimeout time.Duration

	WSOutboundBuffer  int
	WSMaxMessageBytes int
	WSSendTimeout     time.Duration

	FirstMessageTimeout time.Duration

	AllowedOrigins string

	AppKey string

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// AllowedOriginsSet splits the comma-separated AllowedOrigins into a set,
// trimming whitespace and dropping empty entries. An empty result means
// "allow all origins", mirroring original_source/src/config.rs.
func (c Config) AllowedOriginsSet() map[string]struct{} {
	set := make(map[string]struct{})
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			set[part] = struct{}{}
		}
	}
	return set
}

// Parse reads flags from args (typically os.Args[1:]), falling back to the
// named environment variable, then the given default, for every field —
// the same three-tier resolution original_source/src/config.rs declares
// per-flag via clap's env attribute.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("betfair-stream-proxy", flag.ContinueOnError)

	var cfg Config
	stringVar(fs, &cfg.Bind, "bind", "BIND", "127.0.0.1:8080", "address to bind the HTTP/WebSocket server on")
	stringVar(fs, &cfg.BetfairHost, "betfair-host", "BETFAIR_HOST", "stream-api.betfair.com", "betfair streaming host")
	intVar(fs, &cfg.BetfairPort, "betfair-port", "BETFAIR_PORT", 443, "betfair streaming port")
	intVar(fs, &cfg.UpstreamMaxFrameBytes, "upstream-max-frame-bytes", "UPSTREAM_MAX_FRAME_BYTES", 1048576, "max upstream frame size in bytes before closing")
	durationMsVar(fs, &cfg.UpstreamConnectTimeout, "upstream-connect-timeout-ms", "UPSTREAM_CONNECT_TIMEOUT_MS", 10000, "upstream tcp/tls connect timeout")
	intVar(fs, &cfg.WSOutboundBuffer, "ws-outbound-buffer", "WS_OUTBOUND_BUFFER", 1024, "ws outbound buffer (upstream->browser) messages")
	intVar(fs, &cfg.WSMaxMessageBytes, "ws-max-message-bytes", "WS_MAX_MESSAGE_BYTES", 1048576, "maximum size of a single browser->proxy message")
	durationMsVar(fs, &cfg.WSSendTimeout, "ws-send-timeout-ms", "WS_SEND_TIMEOUT_MS", 5000, "timeout for writing a single message to the browser")
	durationMsVar(fs, &cfg.FirstMessageTimeout, "first-message-timeout-ms", "FIRST_MESSAGE_TIMEOUT_MS", 10000, "advisory wait for the browser's first message")
	stringVar(fs, &cfg.AllowedOrigins, "allowed-origins", "ALLOWED_ORIGINS", "", "comma-separated list of allowed Origin header values; empty allows all")
	stringVar(fs, &cfg.AppKey, "app-key", "BETFAIR_APP_KEY", "", "betfair application key (used only when no key is embedded at build time)")
	stringVar(fs, &cfg.MetricsAddr, "metrics", "METRICS_ADDR", "", "tcp addr for prometheus /metrics (empty disables the metrics server)")
	stringVar(fs, &cfg.LogLevel, "log-level", "LOG_LEVEL", "info", "logrus level: trace, debug, info, warn, error")
	stringVar(fs, &cfg.LogFormat, "log-format", "LOG_FORMAT", "text", "log format: text or json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func stringVar(fs *flag.FlagSet, p *string, flagName, envName, def, usage string) {
	if v, ok := os.LookupEnv(envName); ok {
		def = v
	}
	fs.StringVar(p, flagName, def, fmt.Sprintf("%s (env %s)", usage, envName))
}

func intVar(fs *flag.FlagSet, p *int, flagName, envName string, def int, usage string) {
	if v, ok := os.LookupEnv(envName); ok {
		if n, err := strconv.Atoi(v); err == nil {
			def = n
		}
	}
	fs.IntVar(p, flagName, def, fmt.Sprintf("%s (env %s)", usage, envName))
}

// durationMsVar exposes a millisecond-valued flag/env pair (matching the
// original's `_ms`-suffixed fields) as a time.Duration.
func durationMsVar(fs *flag.FlagSet, p *time.Duration, flagName, envName string, defMs int, usage string) {
	ms := defMs
	if v, ok := os.LookupEnv(envName); ok {
		if n, err := strconv.Atoi(v); err == nil {
			ms = n
		}
	}
	fs.Func(flagName, fmt.Sprintf("%s, in ms (env %s, default %d)", usage, envName, defMs), func(s string) error {
		n, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*p = time.Duration(n) * time.Millisecond
		return nil
	})
	*p = time.Duration(ms) * time.Millisecond
}
