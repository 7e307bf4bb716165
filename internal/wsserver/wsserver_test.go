package wsserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/bridge"
	"github.com/savostin/betfair-stream-proxy/internal/upstream"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func TestHealthz(t *testing.T) {
	s := New(nil, upstream.Config{}, bridge.Config{}, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Healthz(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "ok" {
		t.Fatalf("body = %q, want %q", rec.Body.String(), "ok")
	}
}

func TestOriginAllowedEmptyAllowlistAcceptsAll(t *testing.T) {
	s := New(map[string]struct{}{}, upstream.Config{}, bridge.Config{}, testLogger())
	if !s.originAllowed("") {
		t.Fatalf("empty allowlist should accept a missing Origin header")
	}
	if !s.originAllowed("https://anything.example") {
		t.Fatalf("empty allowlist should accept any Origin")
	}
}

func TestOriginAllowedExactMatch(t *testing.T) {
	allowed := map[string]struct{}{"https://trusted.example": {}}
	s := New(allowed, upstream.Config{}, bridge.Config{}, testLogger())

	if !s.originAllowed("https://trusted.example") {
		t.Fatalf("expected the listed origin to be allowed")
	}
	if s.originAllowed("https://untrusted.example") {
		t.Fatalf("unlisted origin must be rejected")
	}
	if s.originAllowed("") {
		t.Fatalf("missing origin must be rejected when an allowlist is configured")
	}
}

func TestHandleWSRejectsDisallowedOrigin(t *testing.T) {
	allowed := map[string]struct{}{"https://trusted.example": {}}
	s := New(allowed, upstream.Config{}, bridge.Config{}, testLogger())

	srv := httptest.NewServer(http.HandlerFunc(s.HandleWS))
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "https://untrusted.example")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}
