package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rssmerge/config"
)

func testConfig() config.SecurityConfig {
	return config.SecurityConfig{
		APIKeyRequired:    true,
		APIKey:            "secret-key",
		RateLimitEnabled:  true,
		RateLimitWindow:   60,
		RateLimitRequests: 10,
	}
}

func newRequest(method, target string) *http.Request {
	r := httptest.NewRequest(method, target, nil)
	r.RemoteAddr = "192.0.2.1:51234"
	return r
}

func TestClientIPPriority(t *testing.T) {
	cases := []struct {
		name      string
		forwarded string
		realIP    string
		want      string
	}{
		{"forwarded first segment", "203.0.113.7, 10.0.0.1", "198.51.100.2", "203.0.113.7"},
		{"forwarded trims spaces", " 203.0.113.9 ,10.0.0.1", "", "203.0.113.9"},
		{"real ip fallback", "", "198.51.100.2", "198.51.100.2"},
		{"peer address fallback", "", "", "192.0.2.1"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := newRequest(http.MethodGet, "/generate")
			if c.forwarded != "" {
				r.Header.Set("X-Forwarded-For", c.forwarded)
			}
			if c.realIP != "" {
				r.Header.Set("X-Real-IP", c.realIP)
			}
			assert.Equal(t, c.want, ClientIP(r))
		})
	}
}

func TestAPIKeyCheck(t *testing.T) {
	g := NewGate(testConfig(), nil)
	check := g.APIKey()

	t.Run("missing key", func(t *testing.T) {
		rej := check(newRequest(http.MethodGet, "/generate"))
		require.NotNil(t, rej)
		assert.Equal(t, http.StatusUnauthorized, rej.Status)
		assert.Contains(t, rej.Msg, "missing")
	})

	t.Run("invalid key", func(t *testing.T) {
		r := newRequest(http.MethodGet, "/generate")
		r.Header.Set("X-API-Key", "wrong")
		rej := check(r)
		require.NotNil(t, rej)
		assert.Equal(t, http.StatusUnauthorized, rej.Status)
		assert.Contains(t, rej.Msg, "invalid")
	})

	t.Run("valid header key", func(t *testing.T) {
		r := newRequest(http.MethodGet, "/generate")
		r.Header.Set("X-API-Key", "secret-key")
		assert.Nil(t, check(r))
	})

	t.Run("valid query key", func(t *testing.T) {
		r := newRequest(http.MethodGet, "/generate?api_key=secret-key")
		assert.Nil(t, check(r))
	})

	t.Run("disabled admits all", func(t *testing.T) {
		cfg := testConfig()
		cfg.APIKeyRequired = false
		g := NewGate(cfg, nil)
		assert.Nil(t, g.APIKey()(newRequest(http.MethodGet, "/generate")))
	})
}

func TestIPAllowlistCheck(t *testing.T) {
	cfg := testConfig()
	cfg.IPWhitelistEnabled = true
	cfg.IPWhitelist = []string{"203.0.113.7"}
	g := NewGate(cfg, nil)
	check := g.IPAllowlist()

	t.Run("member admitted", func(t *testing.T) {
		r := newRequest(http.MethodGet, "/generate")
		r.Header.Set("X-Forwarded-For", "203.0.113.7")
		assert.Nil(t, check(r))
	})

	t.Run("non-member forbidden", func(t *testing.T) {
		rej := check(newRequest(http.MethodGet, "/generate"))
		require.NotNil(t, rej)
		assert.Equal(t, http.StatusForbidden, rej.Status)
	})

	t.Run("disabled admits all", func(t *testing.T) {
		cfg := testConfig()
		cfg.IPWhitelistEnabled = false
		g := NewGate(cfg, nil)
		assert.Nil(t, g.IPAllowlist()(newRequest(http.MethodGet, "/generate")))
	})
}

func TestValidateRequestCheck(t *testing.T) {
	g := NewGate(testConfig(), nil)
	check := g.ValidateRequest()

	t.Run("get allowed", func(t *testing.T) {
		assert.Nil(t, check(newRequest(http.MethodGet, "/")))
	})

	t.Run("method not allowed", func(t *testing.T) {
		rej := check(newRequest(http.MethodDelete, "/"))
		require.NotNil(t, rej)
		assert.Equal(t, http.StatusMethodNotAllowed, rej.Status)
	})

	t.Run("oversized body refused", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		r.ContentLength = 17 << 20
		rej := check(r)
		require.NotNil(t, rej)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rej.Status)
	})
}

func TestRateLimitCheck(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRequests = 2
	g := NewGate(cfg, nil)
	check := g.RateLimit()

	r := newRequest(http.MethodGet, "/generate")
	assert.Nil(t, check(r))
	assert.Nil(t, check(r))

	rej := check(r)
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusTooManyRequests, rej.Status)
}

func TestChainShortCircuits(t *testing.T) {
	calls := []string{}
	mk := func(name string, rej *Rejection) Check {
		return func(r *http.Request) *Rejection {
			calls = append(calls, name)
			return rej
		}
	}

	chain := Chain(
		mk("validate", nil),
		mk("key", &Rejection{Status: http.StatusUnauthorized, Msg: "nope"}),
		mk("rate", nil),
	)

	rej := chain(newRequest(http.MethodGet, "/"))
	require.NotNil(t, rej)
	assert.Equal(t, http.StatusUnauthorized, rej.Status)
	// The rate check after the failing key check never runs.
	assert.Equal(t, []string{"validate", "key"}, calls)
}

func TestSetConfigSwapsPolicy(t *testing.T) {
	g := NewGate(testConfig(), nil)

	cfg := testConfig()
	cfg.APIKey = "rotated"
	g.SetConfig(cfg)

	r := newRequest(http.MethodGet, "/generate")
	r.Header.Set("X-API-Key", "secret-key")
	require.NotNil(t, g.APIKey()(r))

	r.Header.Set("X-API-Key", "rotated")
	assert.Nil(t, g.APIKey()(r))
}
