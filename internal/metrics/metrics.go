// Package metrics holds the process-wide prometheus collectors: a gauge
// for active sessions, counters for accepted/rejected/errors/bytes/
// messages/control frames/oversize drops, relabeled for the upstream-TLS
// <-> client-WebSocket direction, with RPC/identity counters added for
// this domain's auth paths.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "betfair_proxy_active_sessions",
		Help: "Number of active bridge sessions",
	})
	Accepted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betfair_proxy_accepted_total",
		Help: "Accepted WebSocket sessions",
	})
	Rejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_rejected_total",
		Help: "Rejected upgrade requests by reason",
	}, []string{"reason"})
	Errors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_errors_total",
		Help: "Errors by stage",
	}, []string{"stage"})
	Bytes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_bytes_total",
		Help: "Bytes forwarded by direction",
	}, []string{"dir"}) // upstream_to_client, client_to_upstream
	Messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_messages_total",
		Help: "Messages forwarded by direction",
	}, []string{"dir"})
	Ctrl = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_control_frames_total",
		Help: "Control frames observed",
	}, []string{"type"}) // ping/pong/close
	OversizeDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_oversize_drops_total",
		Help: "Client frames dropped without ending the session, by kind",
	}, []string{"kind"})
	QueueFullDisconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "betfair_proxy_queue_full_disconnects_total",
		Help: "Sessions cancelled because the outbound queue was full",
	})
	RPCCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_rpc_calls_total",
		Help: "JSON-RPC calls by service and outcome",
	}, []string{"service", "outcome"}) // outcome: ok, error, rejected
	IdentityLogins = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "betfair_proxy_identity_logins_total",
		Help: "Identity login attempts by outcome",
	}, []string{"outcome"}) // outcome: success, failure, invalid_response
)

func init() {
	prometheus.MustRegister(
		ActiveSessions, Accepted, Rejected, Errors,
		Bytes, Messages, Ctrl, OversizeDrops,
		QueueFullDisconnects, RPCCalls, IdentityLogins,
	)
}
