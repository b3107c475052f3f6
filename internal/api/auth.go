package api

import (
	"crypto/subtle"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"agendo/internal/config"
	"agendo/internal/domain"

	"golang.org/x/time/rate"
)

const (
	apiKeyHeaderDefault   = "x-api-key"
	apiExtraHeaderDefault = "x-api-extra"

	permReadSlots = "read:slots"
	permBook      = "write:bookings"
	permReadAppts = "read:appointments"
	permExport    = "read:export"
	clientUnknown = "unknown"
	webhookPath   = "/api/v1/payments/webhook"
	healthzPath   = "/healthz"
)

var errPermissionDenied = fmt.Errorf("permission denied")

// HTTPAuth provides API-key auth and rate limiting. Limiting is two
// tiered: a per-key token bucket in this process, plus an optional
// shared window counter across instances.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	shared   domain.SharedState
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig, shared domain.SharedState) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, shared: shared}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The gateway cannot authenticate; the webhook validates by
		// querying the gateway instead. Health checks skip auth too.
		if r.URL.Path == webhookPath || r.URL.Path == healthzPath {
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			if err := a.checkAuth(r); err != nil {
				statusCode := http.StatusUnauthorized
				if err == errPermissionDenied {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) checkAuth(r *http.Request) error {
	apiKeyHeader := headerOrDefault(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)
	extraHeader := headerOrDefault(a.cfg.Auth.HeaderExtra, apiExtraHeaderDefault)

	apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader))
	extra := strings.TrimSpace(r.Header.Get(extraHeader))
	if apiKey == "" || extra == "" {
		return fmt.Errorf("missing api key headers")
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return fmt.Errorf("invalid api key")
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return fmt.Errorf("invalid extra header")
	}

	return a.checkPermissions(client, r)
}

func (a *HTTPAuth) checkPermissions(client config.APIClientKey, r *http.Request) error {
	required := requiredPermission(r)
	if required == "" {
		return nil
	}
	// An empty permissions list means allow-all.
	if len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.Contains(path, "/slots"):
		return permReadSlots
	case strings.Contains(path, "/schedule/export"):
		return permExport
	case strings.Contains(path, "/reservations"), strings.Contains(path, "/appointments") && r.Method == http.MethodPost:
		return permBook
	case strings.Contains(path, "/appointments"):
		return permReadAppts
	default:
		return ""
	}
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}

	key := a.clientKey(r)
	lim := a.getLimiter(key)
	if !lim.Allow() {
		return fmt.Errorf("rate limit exceeded")
	}

	shared := a.cfg.RateLimit.Shared
	if shared.Enabled && a.shared != nil {
		window := time.Duration(shared.WindowSeconds) * time.Second
		allowed, err := a.shared.CheckRateLimit(r.Context(), key, shared.Requests, window)
		// Shared limiting is advisory: on backend errors the local
		// bucket already applied, so let the request through.
		if err == nil && !allowed {
			return fmt.Errorf("rate limit exceeded")
		}
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	apiKeyHeader := headerOrDefault(a.cfg.Auth.HeaderAPIKey, apiKeyHeaderDefault)
	if apiKey := strings.TrimSpace(r.Header.Get(apiKeyHeader)); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientUnknown
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}

	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func headerOrDefault(name, def string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return def
	}
	return name
}
