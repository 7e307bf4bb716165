// Package codec implements the CRLF-delimited UTF-8 text framing used on
// the upstream TLS stream: frames are JSON objects terminated by "\r\n",
// never containing a raw CR or LF themselves.
package codec

import (
	"bytes"
	"unicode/utf8"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
)

const crlf = "\r\n"

// Decoder is a stateful decoder over a growing byte buffer. It never emits
// a partial frame and never collapses multiple buffered lines into one
// Next call.
type Decoder struct {
	maxLen int
	buf    []byte
}

// NewDecoder returns a Decoder that fails any frame whose pre-delimiter
// length exceeds maxLen.
func NewDecoder(maxLen int) *Decoder {
	return &Decoder{maxLen: maxLen}
}

// Feed appends newly read bytes to the internal buffer.
func (d *Decoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next attempts to decode one frame from the buffered bytes. It returns
// (line, true, nil) on success, (\"\", false, nil) if more bytes are
// needed, or (\"\", false, err) on a framing violation.
func (d *Decoder) Next() (string, bool, error) {
	idx := bytes.Index(d.buf, []byte(crlf))
	if idx < 0 {
		if len(d.buf) > d.maxLen {
			return "", false, apperr.FrameTooLong()
		}
		return "", false, nil
	}

	if idx > d.maxLen {
		return "", false, apperr.FrameTooLong()
	}

	line := d.buf[:idx]
	if !utf8.Valid(line) {
		// Drop the bad frame from the buffer so a subsequent Next call
		// doesn't loop on the same bytes; the caller is expected to end
		// the session on this error regardless.
		d.buf = d.buf[idx+2:]
		return "", false, apperr.BadUTF8()
	}

	text := string(line)
	d.buf = d.buf[idx+2:]
	return text, true, nil
}

// Encode writes s followed by exactly one CRLF. It rejects strings longer
// than maxLen.
func Encode(s string, maxLen int) ([]byte, error) {
	if len(s) > maxLen {
		return nil, apperr.FrameTooLong()
	}
	out := make([]byte, 0, len(s)+2)
	out = append(out, s...)
	out = append(out, crlf...)
	return out, nil
}
