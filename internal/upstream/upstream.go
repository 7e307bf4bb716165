// Package upstream implements the timed TCP connect + TLS handshake to the
// vendor streaming host, and the CRLF-framed read/write halves built on
// top of it, grounded on original_source/src/upstream.rs.
package upstream

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
	"github.com/savostin/betfair-stream-proxy/internal/codec"
)

// Config carries the knobs Connect needs; a subset of the process-wide
// config relevant to dialing the upstream.
type Config struct {
	Host             string
	Port             int
	ConnectTimeout   time.Duration
	MaxUpstreamFrame int
}

// Conn is a connected upstream TLS/TCP session framed with the CRLF line
// codec. Split separates it into independently-owned read/write halves,
// matching the single-reader/single-writer ownership discipline the
// session bridge relies on.
type Conn struct {
	nc      net.Conn
	maxLen  int
	closeMu sync.Mutex
	closed  bool
}

// Connect resolves host:port, dials with a deadline, performs a TLS
// handshake using the platform root store with host as SNI, and returns a
// framed Conn. Any step past the deadline fails with
// apperr.UpstreamTimedOut.
func Connect(ctx context.Context, cfg Config) (*Conn, *apperr.Error) {
	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dialer := &net.Dialer{}
	tcpConn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, apperr.UpstreamTimedOut()
		}
		return nil, apperr.IO(err)
	}

	tlsConfig := &tls.Config{
		ServerName: cfg.Host,
		MinVersion: tls.VersionTLS12,
	}
	tlsConn := tls.Client(tcpConn, tlsConfig)

	handshakeCtx, cancelHandshake := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancelHandshake()

	if err := tlsConn.HandshakeContext(handshakeCtx); err != nil {
		tcpConn.Close()
		if handshakeCtx.Err() != nil {
			return nil, apperr.UpstreamTimedOut()
		}
		return nil, apperr.TLS(err)
	}

	return &Conn{nc: tlsConn, maxLen: cfg.MaxUpstreamFrame}, nil
}

// NewConn wraps an already-established net.Conn as a framed upstream Conn,
// bypassing Connect's dial/handshake. Exported for tests that stand in a
// net.Pipe or plain TCP connection for the real TLS upstream.
func NewConn(nc net.Conn, maxLen int) *Conn {
	return &Conn{nc: nc, maxLen: maxLen}
}

// Split returns independently-owned read and write halves.
func (c *Conn) Split() (*Reader, *Writer) {
	return &Reader{conn: c}, &Writer{conn: c}
}

// Close closes the underlying connection exactly once.
func (c *Conn) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.nc.Close()
}

// Reader is the read half of an upstream Conn; owned by exactly one task.
type Reader struct {
	conn *Conn
	dec  *codec.Decoder
	buf  [32 * 1024]byte
}

// NextLine blocks until a full CRLF-delimited line is available, the
// connection is closed (io.EOF-equivalent), or a framing/UTF-8 violation
// occurs.
func (r *Reader) NextLine() (string, error) {
	if r.dec == nil {
		r.dec = codec.NewDecoder(r.conn.maxLen)
	}
	for {
		if line, ok, err := r.dec.Next(); err != nil {
			return "", err
		} else if ok {
			return line, nil
		}

		n, err := r.conn.nc.Read(r.buf[:])
		if n > 0 {
			r.dec.Feed(r.buf[:n])
			// A read that both returned bytes and an error (e.g. EOF) still
			// yields those bytes to the decoder before the error surfaces;
			// loop once more so a trailing complete line isn't lost.
			if line, ok, decErr := r.dec.Next(); decErr != nil {
				return "", decErr
			} else if ok {
				return line, nil
			}
		}
		if err != nil {
			return "", err
		}
	}
}

// Writer is the write half of an upstream Conn; owned by exactly one task.
// It guarantees an appended CRLF per send.
type Writer struct {
	conn *Conn
}

// SendLine encodes s with a trailing CRLF and writes it upstream.
func (w *Writer) SendLine(s string) error {
	frame, aerr := codec.Encode(s, w.conn.maxLen)
	if aerr != nil {
		return aerr
	}
	_, err := w.conn.nc.Write(frame)
	return err
}

// Close closes the underlying connection (shared with the Reader's Conn).
func (w *Writer) Close() error {
	return w.conn.Close()
}
