// Package rpc implements the allowlisted JSON-RPC invocation path,
// grounded on original_source/src-tauri/src/betfair/rpc.rs (single-object
// request variant, chosen per DESIGN.md Open Question #2) with the
// request-id/bf-correlation-id capture from original_source/src/betfair/rpc.rs
// merged in.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/savostin/betfair-stream-proxy/internal/apperr"
	"github.com/savostin/betfair-stream-proxy/internal/creds"
	"github.com/savostin/betfair-stream-proxy/internal/metrics"
)

// Caller performs allowlisted JSON-RPC calls against the Betfair exchange
// API, rate limiting outbound calls so a misbehaving client can't hammer
// the vendor — the vendor's TOO_MANY_REQUESTS identity error code implies
// it enforces its own limit regardless.
type Caller struct {
	HTTP    *http.Client
	Store   *creds.Store
	Log     logrus.FieldLogger
	Limiter *rate.Limiter
}

// NewCaller builds a Caller with a default rate limiter of 5 requests/sec,
// burst 10 — generous enough for interactive use, tight enough to guard
// against a runaway client.
func NewCaller(httpClient *http.Client, store *creds.Store, log logrus.FieldLogger) *Caller {
	return &Caller{
		HTTP:    httpClient,
		Store:   store,
		Log:     log,
		Limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      int             `json:"id"`
}

type rpcElement struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    json.RawMessage `json:"code"`
	Message string          `json:"message"`
}

// Call dispatches service/method with params, enforcing the allowlist and
// credential checks before any network I/O.
func (c *Caller) Call(ctx context.Context, service creds.Service, method string, params json.RawMessage) (json.RawMessage, *apperr.Error) {
	prefix, known := creds.MethodPrefix(service)
	if !known {
		metrics.RPCCalls.WithLabelValues(string(service), "rejected").Inc()
		return nil, apperr.InvalidService()
	}
	if !c.Store.IsMethodAllowed(service, method) {
		metrics.RPCCalls.WithLabelValues(string(service), "rejected").Inc()
		return nil, apperr.MethodNotAllowed()
	}

	appKey := c.Store.AppKey()
	if appKey == "" {
		metrics.RPCCalls.WithLabelValues(string(service), "rejected").Inc()
		return nil, apperr.AppKeyRequired()
	}
	token := c.Store.SessionToken()
	if token == "" {
		metrics.RPCCalls.WithLabelValues(string(service), "rejected").Inc()
		return nil, apperr.NotLoggedIn()
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
			return nil, apperr.Unexpected("rate limiter: " + err.Error())
		}
	}

	fullMethod := prefix + "/" + method
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  fullMethod,
		Params:  params,
		ID:      1,
	})
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.JSON(err)
	}

	baseURL := creds.ServiceBaseURL[service]
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL, bytes.NewReader(body))
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.Unexpected("building request: " + err.Error())
	}
	req.Header.Set("X-Application", appKey)
	req.Header.Set("X-Authentication", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{
			"service":           service,
			"method":            method,
			"full_method":       fullMethod,
			"session_token_len": len(token),
		}).Info("betfair json-rpc request")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.Unexpected("request failed: " + err.Error())
	}
	defer resp.Body.Close()

	requestID := resp.Header.Get("x-request-id")
	bfCorrelationID := resp.Header.Get("x-bf-correlation-id")

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.Unexpected("read failed: " + err.Error())
	}

	element, perr := firstElement(respBody)
	if perr != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.Unexpected("decoding response: " + perr.Error())
	}

	if element.Error != nil {
		values := map[string]any{
			"httpStatus": resp.StatusCode,
			"message":    element.Error.Message,
			"error":      element.Error,
		}
		if len(element.Error.Code) > 0 {
			var code any
			_ = json.Unmarshal(element.Error.Code, &code)
			values["code"] = code
		}
		if requestID != "" {
			values["requestId"] = requestID
		}
		if bfCorrelationID != "" {
			values["bfCorrelationId"] = bfCorrelationID
		}

		if c.Log != nil {
			c.Log.WithFields(logrus.Fields{
				"http_status":       resp.StatusCode,
				"message":           element.Error.Message,
				"request_id":        requestID,
				"bf_correlation_id": bfCorrelationID,
			}).Warn("betfair json-rpc error")
		}

		metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
		return nil, apperr.RPCFailed(values)
	}

	if element.Result != nil {
		metrics.RPCCalls.WithLabelValues(string(service), "ok").Inc()
		return element.Result, nil
	}

	metrics.RPCCalls.WithLabelValues(string(service), "error").Inc()
	return nil, apperr.InvalidResponse(map[string]any{"httpStatus": resp.StatusCode})
}

// firstElement tolerates both a single JSON-RPC object and a batch array,
// using the first element in the array case.
func firstElement(body []byte) (*rpcElement, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}

	if trimmed[0] == '[' {
		var items []rpcElement
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, fmt.Errorf("empty batch response")
		}
		return &items[0], nil
	}

	var single rpcElement
	if err := json.Unmarshal(trimmed, &single); err != nil {
		return nil, err
	}
	return &single, nil
}
