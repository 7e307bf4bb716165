// Package bridge implements the per-session bidirectional bridge: three
// cooperating tasks sharing a cancellation token, a bounded outbound
// queue, and the ownership discipline original_source/src/app.rs#proxy_session
// describes, built in the concrete Go shape of
// internal/proxy/proxy.go (errCh + sync.WaitGroup + context.WithCancel).
package bridge

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/metrics"
	"github.com/savostin/betfair-stream-proxy/internal/upstream"
)

// errQueueFull is returned from the ping handler to make ReadMessage
// surface a full outbound queue as an ordinary read error, ending the
// session through the same path as any other read failure.
var errQueueFull = errors.New("bridge: outbound queue full")

// Config carries the bridge's timing and sizing knobs, a subset of the
// process-wide configuration.
type Config struct {
	OutboundQueueDepth  int
	FirstMessageTimeout time.Duration
	SendTimeout         time.Duration
	MaxInboundBytes     int
}

// outMessage is one client-bound frame queued by U or by the ping handler
// in C; it is the only thing that crosses the bounded outbound queue.
type outMessage struct {
	kind int
	data []byte
}

// Run drives one session to completion: it owns clientConn and upstreamConn
// for the lifetime of the call and returns once both legs have stopped.
// The returned error is nil unless construction itself failed; per-frame
// errors only ever terminate the session.
func Run(parent context.Context, clientConn *websocket.Conn, upstreamConn *upstream.Conn, cfg Config, log logrus.FieldLogger) error {
	sessionID := uuid.NewString()
	log = log.WithField("session_id", sessionID)

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	defer func() { _ = clientConn.Close() }()

	upReader, upWriter := upstreamConn.Split()

	outbound := make(chan outMessage, cfg.OutboundQueueDepth)

	var wg sync.WaitGroup
	wg.Add(3)

	metrics.ActiveSessions.Inc()
	defer metrics.ActiveSessions.Dec()

	// Task W: client writer, the single owner of the client write half.
	go func() {
		defer wg.Done()
		taskWriter(ctx, cancel, clientConn, outbound, cfg.SendTimeout, log)
	}()

	// Task U: upstream -> client.
	go func() {
		defer wg.Done()
		taskUpstreamToClient(ctx, cancel, upReader, outbound, log)
	}()

	// gorilla/websocket has no cancellable read, unlike the original's
	// tokio::select! over cancel.cancelled()/ws_rx.next(). Closing
	// clientConn on cancellation unblocks Task C's ReadMessage below when W
	// or U cancels first, instead of leaving it blocked forever.
	go func() {
		defer wg.Done()
		<-ctx.Done()
		_ = clientConn.Close()
	}()

	// Task C: client -> upstream. Runs on the calling goroutine; when it
	// returns, the session is over.
	taskClientToUpstream(ctx, cancel, clientConn, upWriter, outbound, cfg, log)

	cancel()
	_ = upWriter.Close()

	wg.Wait()
	// Closed only once every producer has stopped, so no offer can send on
	// a closed channel.
	close(outbound)
	return nil
}

// taskWriter is Task W: it is the only task permitted to call
// clientConn.WriteMessage. It drains outbound until cancellation or channel
// close, applying a per-message send deadline.
func taskWriter(ctx context.Context, cancel context.CancelFunc, clientConn *websocket.Conn, outbound <-chan outMessage, sendTimeout time.Duration, log logrus.FieldLogger) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-outbound:
			if !ok {
				return
			}
			_ = clientConn.SetWriteDeadline(time.Now().Add(sendTimeout))
			if err := clientConn.WriteMessage(msg.kind, msg.data); err != nil {
				log.WithError(err).Debug("client write failed or timed out")
				cancel()
				return
			}
			metrics.Bytes.WithLabelValues("upstream_to_client").Add(float64(len(msg.data)))
		}
	}
}

// taskUpstreamToClient is Task U: it pulls complete lines from the upstream
// reader and non-blocking-offers them to the outbound queue as Text
// messages.
func taskUpstreamToClient(ctx context.Context, cancel context.CancelFunc, upReader *upstream.Reader, outbound chan<- outMessage, log logrus.FieldLogger) {
	for {
		line, err := upReader.NextLine()
		if err != nil {
			log.WithError(err).Debug("upstream read ended")
			cancel()
			return
		}

		if ctx.Err() != nil {
			return
		}

		if !offer(outbound, outMessage{kind: websocket.TextMessage, data: []byte(line)}, cancel) {
			return
		}
		metrics.Messages.WithLabelValues("upstream_to_client").Inc()
	}
}

// offer performs a non-blocking admission-controlled send: on a full
// queue it cancels the session and reports failure. The queue must still
// be open; Run closes it only after all producers have returned.
func offer(outbound chan<- outMessage, msg outMessage, cancel context.CancelFunc) bool {
	select {
	case outbound <- msg:
		return true
	default:
		metrics.QueueFullDisconnects.Inc()
		cancel()
		return false
	}
}

// taskClientToUpstream is Task C: after an advisory wait for the client's
// first inbound message, it reads client frames and forwards normalized
// text lines upstream.
//
// gorilla/websocket never hands Ping/Pong/Close frames back from
// ReadMessage — it consumes them internally via the handlers registered
// below, so those are wired once, up front, rather than switched on here.
// The ping handler enqueues its Pong through the same bounded outbound
// queue Task U uses rather than writing the client connection directly,
// preserving Task W as the sole writer.
func taskClientToUpstream(ctx context.Context, cancel context.CancelFunc, clientConn *websocket.Conn, upWriter *upstream.Writer, outbound chan<- outMessage, cfg Config, log logrus.FieldLogger) {
	clientConn.SetReadLimit(int64(cfg.MaxInboundBytes) + 1)

	clientConn.SetPingHandler(func(appData string) error {
		metrics.Ctrl.WithLabelValues("ping").Inc()
		if !offer(outbound, outMessage{kind: websocket.PongMessage, data: []byte(appData)}, cancel) {
			return errQueueFull
		}
		return nil
	})
	clientConn.SetPongHandler(func(string) error {
		metrics.Ctrl.WithLabelValues("pong").Inc()
		return nil
	})
	clientConn.SetCloseHandler(func(code int, text string) error {
		metrics.Ctrl.WithLabelValues("close").Inc()
		// Don't echo a close frame here: that would be a second writer on
		// clientConn racing Task W. Returning nil still makes ReadMessage
		// surface its default close error, which ends this loop below.
		return nil
	})

	if msg, ok := awaitFirstMessage(clientConn, cfg.FirstMessageTimeout, log); ok {
		if !handleClientMessage(msg.kind, msg.data, upWriter, cfg) {
			return
		}
	}

	for {
		if ctx.Err() != nil {
			return
		}

		kind, data, err := clientConn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("client read ended")
			return
		}

		if !handleClientMessage(kind, data, upWriter, cfg) {
			return
		}
	}
}

// clientMessage is a data frame read from the client, carried from the
// first-message wait into the ordinary loop's handling logic.
type clientMessage struct {
	kind int
	data []byte
}

// awaitFirstMessage reads the client's first inbound frame so it is carried
// forward rather than discarded (DESIGN.md Open Question #3 — the wait
// itself is advisory: when the timeout elapses it is only logged and the
// read keeps waiting, so the session stays open). A read deadline is not
// used because gorilla/websocket fails every later read once one expires.
func awaitFirstMessage(clientConn *websocket.Conn, timeout time.Duration, log logrus.FieldLogger) (clientMessage, bool) {
	if timeout <= 0 {
		return clientMessage{}, false
	}

	timer := time.AfterFunc(timeout, func() {
		log.Debug("no client message within first-message timeout; continuing")
	})
	kind, data, err := clientConn.ReadMessage()
	timer.Stop()

	if err != nil {
		log.WithError(err).Debug("client read ended during first-message wait")
		return clientMessage{}, false
	}

	return clientMessage{kind: kind, data: data}, true
}

// handleClientMessage applies the size/UTF-8/normalization rules to one
// already-read data frame and forwards it upstream. It returns false when
// the session should end.
func handleClientMessage(kind int, data []byte, upWriter *upstream.Writer, cfg Config) bool {
	switch kind {
	case websocket.TextMessage:
		if len(data) > cfg.MaxInboundBytes {
			return false
		}
		return forwardNormalized(upWriter, string(data))

	case websocket.BinaryMessage:
		if len(data) > cfg.MaxInboundBytes {
			return false
		}
		if !utf8.Valid(data) {
			// Drop-only policy (DESIGN.md Open Question #1): discard this
			// frame, keep the session alive.
			metrics.OversizeDrops.WithLabelValues("bad_utf8_binary").Inc()
			return true
		}
		return forwardNormalized(upWriter, string(data))

	default:
		return true
	}
}

// forwardNormalized strips \r and \n and trims surrounding whitespace
// before writing upstream.
func forwardNormalized(upWriter *upstream.Writer, s string) bool {
	normalized := normalize(s)
	if err := upWriter.SendLine(normalized); err != nil {
		return false
	}
	metrics.Bytes.WithLabelValues("client_to_upstream").Add(float64(len(normalized)))
	return true
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}
