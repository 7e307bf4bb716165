// Package apperr implements the structured error taxonomy shared by every
// component: a {key, values} payload that selects an i18n message on the
// client side and carries correlation data, never the app key or session
// token.
package apperr

import "encoding/json"

// Kind identifies the closed set of error kinds a component may surface.
type Kind string

const (
	KindIO                  Kind = "io"
	KindTLS                 Kind = "tls"
	KindFrameTooLong        Kind = "codec.frame_too_long"
	KindBadUTF8             Kind = "codec.bad_utf8"
	KindJSON                Kind = "json"
	KindUpstreamTimedOut    Kind = "upstream_timed_out"
	KindInvalidOrigin       Kind = "invalid_origin"
	KindInvalidService      Kind = "invalid_service"
	KindMethodNotAllowed    Kind = "method_not_allowed"
	KindAppKeyRequired      Kind = "app_key_required"
	KindNotLoggedIn         Kind = "not_logged_in"
	KindMissingSessionToken Kind = "missing_session_token"
	KindInvalidResponse     Kind = "invalid_response"
	KindRPCFailed           Kind = "rpc_failed"
	KindIdentityFailed      Kind = "identity_failed"
	KindUnexpected          Kind = "unexpected"
)

// Error is the wire/runtime representation of a failure: an i18n key plus
// an optional values map carrying correlation data (HTTP status, vendor
// error code, message, request id). It is never allowed to carry a secret.
type Error struct {
	Kind   Kind           `json:"-"`
	Key    string         `json:"key"`
	Values map[string]any `json:"values,omitempty"`
}

func (e *Error) Error() string {
	return e.Key
}

// MarshalJSON renders the {key, values} payload the UI/caller expects.
func (e *Error) MarshalJSON() ([]byte, error) {
	type wire struct {
		Key    string         `json:"key"`
		Values map[string]any `json:"values,omitempty"`
	}
	return json.Marshal(wire{Key: e.Key, Values: e.Values})
}

func new_(kind Kind, key string, values map[string]any) *Error {
	return &Error{Kind: kind, Key: key, Values: values}
}

func IO(err error) *Error {
	return new_(KindIO, "errors:io", map[string]any{"details": errString(err)})
}

func TLS(err error) *Error {
	return new_(KindTLS, "errors:tls", map[string]any{"details": errString(err)})
}

func FrameTooLong() *Error {
	return new_(KindFrameTooLong, "errors:codec.frameTooLong", nil)
}

func BadUTF8() *Error {
	return new_(KindBadUTF8, "errors:codec.badUtf8", nil)
}

func JSON(err error) *Error {
	return new_(KindJSON, "errors:json", map[string]any{"details": errString(err)})
}

func UpstreamTimedOut() *Error {
	return new_(KindUpstreamTimedOut, "errors:upstream.timedOut", nil)
}

func InvalidOrigin() *Error {
	return new_(KindInvalidOrigin, "errors:validation.invalidOrigin", nil)
}

func InvalidService() *Error {
	return new_(KindInvalidService, "errors:validation.invalidService", nil)
}

func MethodNotAllowed() *Error {
	return new_(KindMethodNotAllowed, "errors:validation.methodNotAllowed", nil)
}

func AppKeyRequired() *Error {
	return new_(KindAppKeyRequired, "errors:auth.appKeyRequired", nil)
}

func NotLoggedIn() *Error {
	return new_(KindNotLoggedIn, "errors:auth.notLoggedIn", nil)
}

func MissingSessionToken(values map[string]any) *Error {
	return new_(KindMissingSessionToken, "errors:identity.missingSessionToken", values)
}

// InvalidResponse is used by the JSON-RPC caller (C6) when neither a
// result nor an error key is present in the decoded response element.
func InvalidResponse(values map[string]any) *Error {
	return new_(KindInvalidResponse, "errors:betfair.rpc.invalidResponse", values)
}

// IdentityInvalidResponse is used by the identity login flow (C5) for
// unparseable bodies (HTML, redirects, empty bodies, missing status).
func IdentityInvalidResponse(values map[string]any) *Error {
	return new_(KindInvalidResponse, "errors:identity.invalidResponse", values)
}

func RPCFailed(values map[string]any) *Error {
	return new_(KindRPCFailed, "errors:betfair.rpc.failed", values)
}

// knownIdentityCodes is the closed set of vendor identity error codes that
// map to a dedicated i18n key; anything else falls through to "unknown".
var knownIdentityCodes = map[string]bool{
	"INVALID_USERNAME_OR_PASSWORD":         true,
	"ACCOUNT_LOCKED":                       true,
	"ACCOUNT_SUSPENDED":                    true,
	"INVALID_APP_KEY":                      true,
	"INVALID_CONNECTIVITY_TO_REGULATOR_DK": true,
	"INVALID_CONNECTIVITY_TO_REGULATOR_IT": true,
	"INVALID_CONNECTIVITY_TO_REGULATOR_NZ": true,
	"KYC_SUSPEND":                          true,
	"PENDING_AUTH":                         true,
	"SECURITY_QUESTION_WRONG_3X":           true,
	"SELF_EXCLUDED":                        true,
	"TOO_MANY_REQUESTS":                    true,
}

// IdentityFailed maps a vendor identity error code to its i18n key: known
// codes get a dedicated key, unknown codes fall back to
// errors:identity.unknown with the raw code preserved in values.
func IdentityFailed(code string, values map[string]any) *Error {
	key := "errors:identity.unknown"
	if knownIdentityCodes[code] {
		key = "errors:identity." + code
	}
	if values == nil {
		values = map[string]any{}
	}
	values["code"] = code
	return new_(KindIdentityFailed, key, values)
}

func Unexpected(details string) *Error {
	return new_(KindUnexpected, "errors:unexpected.withDetails", map[string]any{"details": details})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
