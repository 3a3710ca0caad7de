// Package security implements per-request admission control: request-shape
// validation, API key verification, IP allow-listing, and sliding-window
// rate limiting.
//
// Checks are modeled as an explicit ordered chain over the incoming request;
// the first failing check short-circuits with a typed rejection.
package security

import (
	"net"
	"net/http"
	"strings"
	"sync"

	"rssmerge/config"
	"rssmerge/logger"
)

// Maximum accepted request body, 16 MiB.
const maxBodySize = 16 << 20

// Rejection describes why a request was refused. Status mirrors the HTTP
// code the caller should respond with.
type Rejection struct {
	Status int
	Msg    string
	Detail string
}

// Check inspects a request and returns nil to admit it or a Rejection to
// refuse it.
type Check func(r *http.Request) *Rejection

// Chain composes checks in order, stopping at the first rejection.
func Chain(checks ...Check) Check {
	return func(r *http.Request) *Rejection {
		for _, c := range checks {
			if rej := c(r); rej != nil {
				return rej
			}
		}
		return nil
	}
}

// Gate holds the shared security state: the active policy and the per-client
// rate windows. A single Gate is built at startup and injected into the HTTP
// layer; SetConfig swaps the policy on config reload.
type Gate struct {
	mu      sync.RWMutex
	cfg     config.SecurityConfig
	limiter *Limiter
	log     *logger.Logger
}

// NewGate builds a gate for the given policy.
func NewGate(cfg config.SecurityConfig, log *logger.Logger) *Gate {
	return &Gate{
		cfg:     cfg,
		limiter: NewLimiter(cfg.Window(), cfg.RateLimitRequests),
		log:     log,
	}
}

// SetConfig replaces the active policy. Rate windows already recorded carry
// over and are re-evaluated under the new limits.
func (g *Gate) SetConfig(cfg config.SecurityConfig) {
	g.mu.Lock()
	g.cfg = cfg
	g.mu.Unlock()
	g.limiter.SetPolicy(cfg.Window(), cfg.RateLimitRequests)
}

func (g *Gate) config() config.SecurityConfig {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// ClientIP derives the client identity: the first segment of
// X-Forwarded-For when present, else X-Real-IP, else the transport peer
// address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ValidateRequest checks request shape independently of identity: only GET
// and POST are accepted, and bodies above 16 MiB are refused.
func (g *Gate) ValidateRequest() Check {
	return func(r *http.Request) *Rejection {
		if r.Method != http.MethodGet && r.Method != http.MethodPost {
			return &Rejection{
				Status: http.StatusMethodNotAllowed,
				Msg:    "method not allowed",
				Detail: "method " + r.Method + " is not supported",
			}
		}
		if r.ContentLength > maxBodySize {
			return &Rejection{
				Status: http.StatusRequestEntityTooLarge,
				Msg:    "request body too large",
				Detail: "request body must not exceed 16MB",
			}
		}
		return nil
	}
}

// APIKey verifies the key supplied via the X-API-Key header or the api_key
// query parameter against the configured secret. Missing and invalid keys
// are reported separately. Disabled policy admits everything.
func (g *Gate) APIKey() Check {
	return func(r *http.Request) *Rejection {
		cfg := g.config()
		if !cfg.APIKeyRequired {
			return nil
		}

		key := r.Header.Get("X-API-Key")
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}

		if key == "" {
			g.logRejection(r, "missing api key")
			return &Rejection{
				Status: http.StatusUnauthorized,
				Msg:    "missing api key",
				Detail: "supply the key via the X-API-Key header or the api_key parameter",
			}
		}
		if key != cfg.APIKey {
			g.logRejection(r, "invalid api key")
			return &Rejection{
				Status: http.StatusUnauthorized,
				Msg:    "invalid api key",
				Detail: "check that the api key is correct",
			}
		}
		return nil
	}
}

// IPAllowlist refuses clients whose derived identity is not in the
// configured allow-list. Disabled policy admits everything.
func (g *Gate) IPAllowlist() Check {
	return func(r *http.Request) *Rejection {
		cfg := g.config()
		if !cfg.IPWhitelistEnabled {
			return nil
		}

		ip := ClientIP(r)
		for _, allowed := range cfg.IPWhitelist {
			if ip == allowed {
				return nil
			}
		}

		g.logRejection(r, "ip not in allow-list")
		return &Rejection{
			Status: http.StatusForbidden,
			Msg:    "ip address not authorized",
			Detail: "ip address " + ip + " is not in the allow-list",
		}
	}
}

// RateLimit admits at most the configured number of requests per client
// identity within each sliding window. Disabled policy admits everything.
func (g *Gate) RateLimit() Check {
	return func(r *http.Request) *Rejection {
		if !g.config().RateLimitEnabled {
			return nil
		}

		ip := ClientIP(r)
		if !g.limiter.Allow(ip) {
			g.logRejection(r, "rate limit exceeded")
			return &Rejection{
				Status: http.StatusTooManyRequests,
				Msg:    "too many requests",
				Detail: "retry later",
			}
		}
		return nil
	}
}

// logRejection records a security event with the client identity. A logging
// failure can never mask the rejection itself.
func (g *Gate) logRejection(r *http.Request, reason string) {
	if g.log == nil {
		return
	}
	g.log.Warn("security event",
		"reason", reason,
		"client_ip", ClientIP(r),
		"method", r.Method,
		"path", r.URL.Path,
	)
}
