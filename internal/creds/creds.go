// Package creds holds the process-scope application key, the mutable
// session token, and the three per-service method allowlists, grounded on
// original_source/src-tauri/src/state.rs (AppState, resolve_app_key,
// build_allowlist_*).
package creds

import (
	"os"
	"strings"
	"sync"
)

// Service names the three Betfair API families this proxy allows calls
// against.
type Service string

const (
	ServiceBetting   Service = "betting"
	ServiceAccount   Service = "account"
	ServiceHeartbeat Service = "heartbeat"
)

// servicePrefix maps a service to the fully-qualified method prefix
// Betfair expects.
var servicePrefix = map[Service]string{
	ServiceBetting:   "SportsAPING/v1.0",
	ServiceAccount:   "AccountAPING/v1.0",
	ServiceHeartbeat: "HeartbeatAPING/v1.0",
}

// ServiceBaseURL maps a service to its JSON-RPC endpoint.
var ServiceBaseURL = map[Service]string{
	ServiceBetting:   "https://api.betfair.com/exchange/betting/json-rpc/v1",
	ServiceAccount:   "https://api.betfair.com/exchange/account/json-rpc/v1",
	ServiceHeartbeat: "https://api.betfair.com/exchange/heartbeat/json-rpc/v1",
}

// MethodPrefix returns the fully-qualified method prefix for a service, and
// whether the service is recognized.
func MethodPrefix(service Service) (string, bool) {
	p, ok := servicePrefix[service]
	return p, ok
}

// Store is the process-wide credentials store: the application key is
// immutable after construction; the session token is the only mutable
// field, guarded by a single-writer/multi-reader lock.
type Store struct {
	appKey string

	mu    sync.RWMutex
	token string

	allowlists map[Service]map[string]struct{}
}

// embeddedAppKey is set at compile time via -ldflags
// "-X github.com/savostin/betfair-stream-proxy/internal/creds.embeddedAppKey=...",
// taking priority over any app key configured at runtime.
var embeddedAppKey string

// NewStore builds the credentials store and its three immutable
// allowlists. The embedded constant, when non-empty, always wins.
// Otherwise configured, the app key resolved by internal/config (CLI flag
// or BETFAIR_APP_KEY env var), is used when non-empty, and after that
// BETFAIR_APP_KEY is read directly.
func NewStore(configured string) *Store {
	appKey := strings.TrimSpace(embeddedAppKey)
	if appKey == "" {
		appKey = strings.TrimSpace(configured)
	}
	if appKey == "" {
		appKey = resolveAppKey()
	}
	return &Store{
		appKey:     appKey,
		allowlists: buildAllowlists(),
	}
}

func resolveAppKey() string {
	if v := strings.TrimSpace(embeddedAppKey); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("BETFAIR_APP_KEY"))
}

// AppKey returns the process-wide application key.
func (s *Store) AppKey() string {
	return s.appKey
}

// SessionToken returns the current session token, empty meaning logged out.
func (s *Store) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// SetSessionToken installs a new session token (called after a successful
// login). Callers that read the token earlier keep the value they read.
func (s *Store) SetSessionToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Logout clears the session token.
func (s *Store) Logout() {
	s.SetSessionToken("")
}

// IsMethodAllowed reports whether method is present in service's allowlist.
// An unrecognized service is never allowed.
func (s *Store) IsMethodAllowed(service Service, method string) bool {
	set, ok := s.allowlists[service]
	if !ok {
		return false
	}
	_, allowed := set[method]
	return allowed
}

func buildAllowlists() map[Service]map[string]struct{} {
	return map[Service]map[string]struct{}{
		ServiceBetting:   toSet(bettingMethods),
		ServiceAccount:   toSet(accountMethods),
		ServiceHeartbeat: toSet(heartbeatMethods),
	}
}

func toSet(methods []string) map[string]struct{} {
	set := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		set[m] = struct{}{}
	}
	return set
}

// bettingMethods, accountMethods, and heartbeatMethods are the per-service
// allowlists, merged from the two original_source variants
// (src/state.rs and src-tauri/src/state.rs) to the fuller vendor-realistic
// set.
var bettingMethods = []string{
	"listEventTypes",
	"listCompetitions",
	"listTimeRanges",
	"listEvents",
	"listMarketTypes",
	"listCountries",
	"listVenues",
	"listMarketCatalogue",
	"listMarketBook",
	"listRunnerBook",
	"listCurrentOrders",
	"listClearedOrders",
	"listMarketProfitAndLoss",
	"placeOrders",
	"cancelOrders",
	"replaceOrders",
	"updateOrders",
}

var accountMethods = []string{
	"getAccountFunds",
	"getAccountDetails",
	"getDeveloperAppKeys",
	"getVendorClientId",
	"listCurrencyRates",
	"getAccountStatement",
}

var heartbeatMethods = []string{
	"keepAlive",
}
