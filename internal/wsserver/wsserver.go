// Package wsserver implements the browser-facing WebSocket endpoint:
// Origin validation ahead of the upgrade, a health check, and handoff into
// the session bridge — the handler shape follows
// internal/proxy/proxy.go#HandleH3WebSocket, and the validation and
// routing semantics follow
// original_source/src/app.rs#ws_handler/validate_origin.
package wsserver

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/bridge"
	"github.com/savostin/betfair-stream-proxy/internal/metrics"
	"github.com/savostin/betfair-stream-proxy/internal/upstream"
)

// Server owns the upgrader, the allowed-origin set, and the bridge/upstream
// configuration every accepted session is given.
type Server struct {
	Upgrader       websocket.Upgrader
	AllowedOrigins map[string]struct{}
	UpstreamConfig upstream.Config
	BridgeConfig   bridge.Config
	Log            logrus.FieldLogger
}

// New builds a Server with an upgrader using fixed 4 KiB read/write buffers
// (the inbound message limit is applied per session by the bridge) and
// origin checking disabled at the gorilla layer (origin is validated
// explicitly, by value, before the upgrade is attempted).
func New(allowedOrigins map[string]struct{}, upstreamCfg upstream.Config, bridgeCfg bridge.Config, log logrus.FieldLogger) *Server {
	return &Server{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		AllowedOrigins: allowedOrigins,
		UpstreamConfig: upstreamCfg,
		BridgeConfig:   bridgeCfg,
		Log:            log,
	}
}

// Healthz reports process liveness, matching original_source/src/app.rs's
// bare "ok" 200 response.
func (s *Server) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleWS validates the Origin header, connects to the upstream, upgrades
// the connection, and runs the session bridge to completion.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	if !s.originAllowed(r.Header.Get("Origin")) {
		metrics.Rejected.WithLabelValues("origin").Inc()
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	upstreamConn, aerr := upstream.Connect(r.Context(), s.UpstreamConfig)
	if aerr != nil {
		metrics.Errors.WithLabelValues("upstream_connect").Inc()
		s.Log.WithError(aerr).Warn("upstream connect failed")
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
		return
	}

	clientConn, err := s.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.Errors.WithLabelValues("upgrade").Inc()
		_ = upstreamConn.Close()
		return
	}

	metrics.Accepted.Inc()

	if err := bridge.Run(r.Context(), clientConn, upstreamConn, s.BridgeConfig, s.Log); err != nil {
		s.Log.WithError(err).Warn("ws session ended with error")
	}
}

// originAllowed mirrors original_source/src/app.rs#validate_origin: an
// empty allowlist accepts everything; otherwise the Origin header must be
// present and match an entry exactly.
func (s *Server) originAllowed(origin string) bool {
	if len(s.AllowedOrigins) == 0 {
		return true
	}
	if origin == "" {
		return false
	}
	_, ok := s.AllowedOrigins[origin]
	return ok
}
