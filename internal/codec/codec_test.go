package codec

import (
	"testing"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{
		"",
		`{"op":"status"}`,
		"hello world",
	}
	for _, s := range cases {
		frame, err := Encode(s, 1024)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		dec := NewDecoder(1024)
		dec.Feed(frame)
		got, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("Next() after Encode(%q): %v", s, err)
		}
		if !ok {
			t.Fatalf("Next() reported no line for %q", s)
		}
		if got != s {
			t.Fatalf("round trip mismatch: got %q, want %q", got, s)
		}
	}
}

func TestDecoderMultipleMessages(t *testing.T) {
	dec := NewDecoder(1024)
	dec.Feed([]byte("one\r\ntwo\r\nthree\r\n"))

	want := []string{"one", "two", "three"}
	for _, w := range want {
		got, ok, err := dec.Next()
		if err != nil {
			t.Fatalf("Next(): %v", err)
		}
		if !ok {
			t.Fatalf("Next() reported no line before exhausting buffer")
		}
		if got != w {
			t.Fatalf("got %q, want %q", got, w)
		}
	}

	if _, ok, err := dec.Next(); ok || err != nil {
		t.Fatalf("expected no further line, got ok=%v err=%v", ok, err)
	}
}

func TestDecoderFeedAcrossReads(t *testing.T) {
	dec := NewDecoder(1024)
	dec.Feed([]byte("par"))
	if _, ok, err := dec.Next(); ok || err != nil {
		t.Fatalf("expected incomplete line to yield nothing, got ok=%v err=%v", ok, err)
	}
	dec.Feed([]byte("tial\r\n"))
	got, ok, err := dec.Next()
	if err != nil || !ok || got != "partial" {
		t.Fatalf("got %q ok=%v err=%v, want \"partial\"", got, ok, err)
	}
}

func TestDecoderFrameTooLongNoDelimiter(t *testing.T) {
	dec := NewDecoder(4)
	dec.Feed([]byte("12345"))
	_, _, err := dec.Next()
	assertFrameTooLong(t, err)
}

func TestDecoderFrameTooLongWithDelimiter(t *testing.T) {
	dec := NewDecoder(4)
	dec.Feed([]byte("12345\r\n"))
	_, _, err := dec.Next()
	assertFrameTooLong(t, err)
}

func TestDecoderBadUTF8Dropped(t *testing.T) {
	dec := NewDecoder(1024)
	dec.Feed([]byte{0xff, 0xfe, '\r', '\n'})
	_, ok, err := dec.Next()
	if ok {
		t.Fatalf("expected no line for invalid utf8")
	}
	aerr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if aerr.Kind != apperr.KindBadUTF8 {
		t.Fatalf("got kind %v, want %v", aerr.Kind, apperr.KindBadUTF8)
	}

	// The invalid frame must still be consumed so subsequent frames decode.
	dec.Feed([]byte("next\r\n"))
	got, ok, err := dec.Next()
	if err != nil || !ok || got != "next" {
		t.Fatalf("got %q ok=%v err=%v after bad utf8 frame, want \"next\"", got, ok, err)
	}
}

func TestEncodeTooLong(t *testing.T) {
	_, err := Encode("12345", 4)
	assertFrameTooLong(t, err)
}

func assertFrameTooLong(t *testing.T, err error) {
	t.Helper()
	aerr, ok := err.(*apperr.Error)
	if !ok {
		t.Fatalf("expected *apperr.Error, got %T (%v)", err, err)
	}
	if aerr.Kind != apperr.KindFrameTooLong {
		t.Fatalf("got kind %v, want %v", aerr.Kind, apperr.KindFrameTooLong)
	}
}
