// Package app wires configuration, logging, credentials, and the
// WebSocket endpoint into a running process: a standard HTTP/1.1 server,
// a promhttp metrics goroutine, and the session bridge behind /ws.
package app

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/bridge"
	"github.com/savostin/betfair-stream-proxy/internal/config"
	"github.com/savostin/betfair-stream-proxy/internal/creds"
	"github.com/savostin/betfair-stream-proxy/internal/logging"
	"github.com/savostin/betfair-stream-proxy/internal/upstream"
	"github.com/savostin/betfair-stream-proxy/internal/wsserver"
)

// Run parses configuration and serves /ws and /healthz until the process
// is killed or ListenAndServe fails.
func Run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	// The credentials store is process-scoped; identity login and RPC
	// calls are orthogonal paths that read and mutate it, invoked
	// directly as a Go API rather than over HTTP — the only HTTP routes
	// are /ws and /healthz. Nothing in this binary drives that Go API yet:
	// there is no GUI/command/reverse-proxy surface to trigger a login or
	// an RPC call, so the store sits ready for a caller that isn't wired
	// up here.
	store := creds.NewStore(cfg.AppKey)
	_ = store

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, log)
	} else {
		log.Info("metrics disabled (set -metrics to enable)")
	}

	upstreamCfg := upstream.Config{
		Host:             cfg.BetfairHost,
		Port:             cfg.BetfairPort,
		ConnectTimeout:   cfg.UpstreamConnectTimeout,
		MaxUpstreamFrame: cfg.UpstreamMaxFrameBytes,
	}
	bridgeCfg := bridge.Config{
		OutboundQueueDepth:  cfg.WSOutboundBuffer,
		FirstMessageTimeout: cfg.FirstMessageTimeout,
		SendTimeout:         cfg.WSSendTimeout,
		MaxInboundBytes:     cfg.WSMaxMessageBytes,
	}

	srv := wsserver.New(cfg.AllowedOriginsSet(), upstreamCfg, bridgeCfg, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", srv.Healthz)
	mux.HandleFunc("/ws", srv.HandleWS)

	httpServer := &http.Server{
		Addr:              cfg.Bind,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("bind", cfg.Bind).WithField("betfair_host", cfg.BetfairHost).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func startMetricsServer(addr string, log logrus.FieldLogger) {
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		log.WithField("addr", addr).Info("metrics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server error")
		}
	}()
}
