package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bind != "127.0.0.1:8080" {
		t.Fatalf("Bind = %q, want default", cfg.Bind)
	}
	if cfg.BetfairHost != "stream-api.betfair.com" {
		t.Fatalf("BetfairHost = %q, want default", cfg.BetfairHost)
	}
	if cfg.BetfairPort != 443 {
		t.Fatalf("BetfairPort = %d, want 443", cfg.BetfairPort)
	}
	if cfg.UpstreamConnectTimeout != 10*time.Second {
		t.Fatalf("UpstreamConnectTimeout = %v, want 10s", cfg.UpstreamConnectTimeout)
	}
	if cfg.FirstMessageTimeout != 10*time.Second {
		t.Fatalf("FirstMessageTimeout = %v, want 10s", cfg.FirstMessageTimeout)
	}
	if cfg.WSSendTimeout != 5*time.Second {
		t.Fatalf("WSSendTimeout = %v, want 5s", cfg.WSSendTimeout)
	}
	if cfg.WSOutboundBuffer != 1024 {
		t.Fatalf("WSOutboundBuffer = %d, want 1024", cfg.WSOutboundBuffer)
	}
}

func TestParseFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Parse([]string{"-bind", "0.0.0.0:9090", "-betfair-port", "8443"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bind != "0.0.0.0:9090" {
		t.Fatalf("Bind = %q, want override", cfg.Bind)
	}
	if cfg.BetfairPort != 8443 {
		t.Fatalf("BetfairPort = %d, want 8443", cfg.BetfairPort)
	}
}

func TestParseEnvOverridesDefaultButNotFlag(t *testing.T) {
	t.Setenv("BIND", "env-bind:1111")
	t.Setenv("BETFAIR_PORT", "7777")

	cfg, err := Parse([]string{"-betfair-port", "9999"})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Bind != "env-bind:1111" {
		t.Fatalf("Bind = %q, want env override", cfg.Bind)
	}
	if cfg.BetfairPort != 9999 {
		t.Fatalf("BetfairPort = %d, want explicit flag to win over env", cfg.BetfairPort)
	}
}

func TestAllowedOriginsSet(t *testing.T) {
	cfg := Config{AllowedOrigins: " https://a.example , https://b.example,,"}
	set := cfg.AllowedOriginsSet()
	if len(set) != 2 {
		t.Fatalf("len(set) = %d, want 2 (%v)", len(set), set)
	}
	if _, ok := set["https://a.example"]; !ok {
		t.Fatalf("expected https://a.example in set")
	}
	if _, ok := set["https://b.example"]; !ok {
		t.Fatalf("expected https://b.example in set")
	}
}

func TestAllowedOriginsSetEmptyMeansAllowAll(t *testing.T) {
	cfg := Config{AllowedOrigins: ""}
	if len(cfg.AllowedOriginsSet()) != 0 {
		t.Fatalf("expected empty set for empty AllowedOrigins")
	}
}
