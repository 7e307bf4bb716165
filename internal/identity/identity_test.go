package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// Scenario 5: identity success, form-encoded body.
func TestLoginSuccessFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
		_, _ = w.Write([]byte("status=SUCCESS&token=abc%20def"))
	}))
	defer srv.Close()

	token, err := loginAgainst(srv.URL, "user", "pass")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if token != "abc def" {
		t.Fatalf("token = %q, want %q", token, "abc def")
	}
}

// Scenario 6: identity failure, JSON body with a known error code.
func TestLoginFailureJSONKnownCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"FAIL","error":"ACCOUNT_LOCKED"}`))
	}))
	defer srv.Close()

	_, err := loginAgainst(srv.URL, "user", "pass")
	if err == nil {
		t.Fatalf("expected an error, got none")
	}
	if err.Key != "errors:identity.ACCOUNT_LOCKED" {
		t.Fatalf("key = %q, want %q", err.Key, "errors:identity.ACCOUNT_LOCKED")
	}
	if err.Values["httpStatus"] != http.StatusOK {
		t.Fatalf("httpStatus not preserved: %+v", err.Values)
	}
}

func TestLoginFailureUnknownCodeFallsBackToUnknown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"FAIL","error":"SOME_NEW_VENDOR_CODE"}`))
	}))
	defer srv.Close()

	_, err := loginAgainst(srv.URL, "user", "pass")
	if err == nil {
		t.Fatalf("expected an error, got none")
	}
	if err.Key != "errors:identity.unknown" {
		t.Fatalf("key = %q, want %q", err.Key, "errors:identity.unknown")
	}
	if err.Values["code"] != "SOME_NEW_VENDOR_CODE" {
		t.Fatalf("raw code not preserved: %+v", err.Values)
	}
}

func TestLoginMissingSessionToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"SUCCESS","token":""}`))
	}))
	defer srv.Close()

	_, err := loginAgainst(srv.URL, "user", "pass")
	if err == nil || err.Kind != apperr.KindMissingSessionToken {
		t.Fatalf("expected KindMissingSessionToken, got %+v", err)
	}
}

func TestLoginInvalidResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>not json or form</html>"))
	}))
	defer srv.Close()

	_, err := loginAgainst(srv.URL, "user", "pass")
	if err == nil {
		t.Fatalf("expected an error for an unparseable body")
	}
	if err.Key != "errors:identity.invalidResponse" {
		t.Fatalf("key = %q, want errors:identity.invalidResponse", err.Key)
	}
}

// loginAgainst calls loginWithURL against a test server URL in place of the
// real vendor identity endpoint (loginURL is a package constant).
func loginAgainst(url, username, password string) (string, *apperr.Error) {
	return loginWithURL(context.Background(), http.DefaultClient, testLogger(), url, "app-key", username, password)
}
