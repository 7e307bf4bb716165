// Package identity implements the vendor identity login flow, grounded on
// original_source/src-tauri/src/betfair/identity.rs.
package identity

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
	"github.com/savostin/betfair-stream-proxy/internal/metrics"
)

const loginURL = "https://identitysso.betfair.com/api/login"

type jsonResponse struct {
	Status       string `json:"status"`
	Token        string `json:"token"`
	SessionToken string `json:"sessionToken"`
	Error        string `json:"error"`
}

// Login posts credentials to the vendor identity endpoint and returns the
// session token on success, or a structured *apperr.Error describing the
// failure. It never logs the password or the returned token.
func Login(ctx context.Context, http_ *http.Client, log logrus.FieldLogger, appKey, username, password string) (string, *apperr.Error) {
	return loginWithURL(ctx, http_, log, loginURL, appKey, username, password)
}

// loginWithURL is Login's body parameterized on the target URL, so tests
// can exercise the full request/parse/outcome path against an
// httptest.Server instead of the real vendor host.
func loginWithURL(ctx context.Context, http_ *http.Client, log logrus.FieldLogger, targetURL, appKey, username, password string) (string, *apperr.Error) {
	form := url.Values{}
	form.Set("username", strings.TrimSpace(username))
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", apperr.Unexpected("building request: " + err.Error())
	}
	req.Header.Set("X-Application", appKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http_.Do(req)
	if err != nil {
		return "", apperr.Unexpected("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.Unexpected("read failed: " + err.Error())
	}

	contentType := resp.Header.Get("Content-Type")
	text := string(body)

	if log != nil {
		log.WithFields(logrus.Fields{
			"http_status":  resp.StatusCode,
			"content_type": contentType,
			"body_len":     len(body),
		}).Debug("identity login response")
	}

	status, token, errCode, ok := parseBody(text, contentType)
	if !ok {
		metrics.IdentityLogins.WithLabelValues("invalid_response").Inc()
		return "", invalidResponse(resp.StatusCode, contentType)
	}

	switch status {
	case "SUCCESS":
		token = strings.TrimSpace(token)
		if token == "" {
			metrics.IdentityLogins.WithLabelValues("invalid_response").Inc()
			return "", missingSessionToken(resp.StatusCode, contentType)
		}
		metrics.IdentityLogins.WithLabelValues("success").Inc()
		return token, nil
	case "FAIL":
		code := strings.TrimSpace(errCode)
		if code == "" {
			code = "UNKNOWN"
		}
		metrics.IdentityLogins.WithLabelValues("failure").Inc()
		return "", identityFailed(code, resp.StatusCode, contentType)
	default:
		metrics.IdentityLogins.WithLabelValues("invalid_response").Inc()
		return "", invalidResponse(resp.StatusCode, contentType)
	}
}

// parseBody parses either a JSON object or a form-urlencoded body,
// depending on content type / body shape. ok is false when neither format
// yields a recognizable status field.
func parseBody(text, contentType string) (status, token, errCode string, ok bool) {
	looksJSON := strings.Contains(strings.ToLower(contentType), "json") || strings.HasPrefix(strings.TrimSpace(text), "{")
	if looksJSON {
		var v jsonResponse
		if err := json.Unmarshal([]byte(text), &v); err == nil && v.Status != "" {
			tok := v.SessionToken
			if tok == "" {
				tok = v.Token
			}
			return v.Status, tok, v.Error, true
		}
		return "", "", "", false
	}

	values, err := url.ParseQuery(text)
	if err != nil {
		return "", "", "", false
	}
	s := values.Get("status")
	if s == "" {
		return "", "", "", false
	}
	tok := values.Get("sessionToken")
	if tok == "" {
		tok = values.Get("token")
	}
	return s, tok, values.Get("error"), true
}

func invalidResponse(httpStatus int, contentType string) *apperr.Error {
	return apperr.IdentityInvalidResponse(map[string]any{
		"httpStatus":  httpStatus,
		"contentType": contentType,
	})
}

func missingSessionToken(httpStatus int, contentType string) *apperr.Error {
	return apperr.MissingSessionToken(map[string]any{
		"httpStatus":  httpStatus,
		"contentType": contentType,
	})
}

func identityFailed(code string, httpStatus int, contentType string) *apperr.Error {
	return apperr.IdentityFailed(code, map[string]any{
		"httpStatus":  httpStatus,
		"contentType": contentType,
	})
}
