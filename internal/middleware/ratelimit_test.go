package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

func newRateLimitedRouter() *gin.Engine {
	return newRateLimitedRouterBehind(nil)
}

func newRateLimitedRouterBehind(trustedProxies []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{HTTPRateLimit: config.HTTPRateLimitConfig{
		RequestsPerMinute: 1,
		CacheSize:         10,
		CacheTTLSeconds:   int(time.Minute.Seconds()),
	}}

	router := gin.New()
	_ = router.SetTrustedProxies(trustedProxies)
	router.Use(ResolveCaller(headerResolver{}), RateLimit(cfg))
	router.GET("/api/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/webhook/stripe", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func requestFrom(method string, path string, ip string, caller string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = ip + ":1234"
	if caller != "" {
		req.Header.Set("X-Test-Caller", caller)
	}
	return req
}

func TestRateLimitByIP(t *testing.T) {
	router := newRateLimitedRouter()

	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "")); resp.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.Code)
	}
	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "")); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected rate limit, got %d", resp.Code)
	}
	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "5.6.7.8", "")); resp.Code != http.StatusOK {
		t.Fatalf("expected other ip allowed, got %d", resp.Code)
	}
}

func TestRateLimitByCaller(t *testing.T) {
	router := newRateLimitedRouter()

	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "alice")); resp.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.Code)
	}
	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "9.9.9.9", "alice")); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected caller limited across ips, got %d", resp.Code)
	}
	if resp := serve(router, requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "bob")); resp.Code != http.StatusOK {
		t.Fatalf("expected other caller allowed, got %d", resp.Code)
	}
}

func TestRateLimitExemptPaths(t *testing.T) {
	router := newRateLimitedRouter()
	for i := 0; i < 3; i++ {
		if resp := serve(router, requestFrom(http.MethodPost, "/api/webhook/stripe", "1.2.3.4", "")); resp.Code != http.StatusOK {
			t.Fatalf("expected webhook exempt, got %d", resp.Code)
		}
		if resp := serve(router, requestFrom(http.MethodGet, "/health", "1.2.3.4", "")); resp.Code != http.StatusOK {
			t.Fatalf("expected health exempt, got %d", resp.Code)
		}
	}
}

func TestRateLimitIgnoresForwardedHeaderFromUntrustedPeer(t *testing.T) {
	router := newRateLimitedRouter()

	first := requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "")
	first.Header.Set("X-Forwarded-For", "203.0.113.1")
	if resp := serve(router, first); resp.Code != http.StatusOK {
		t.Fatalf("expected ok, got %d", resp.Code)
	}

	spoofed := requestFrom(http.MethodGet, "/api/test", "1.2.3.4", "")
	spoofed.Header.Set("X-Forwarded-For", "203.0.113.2")
	if resp := serve(router, spoofed); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected spoofed header to stay limited, got %d", resp.Code)
	}
}

func TestRateLimitUsesForwardedHeaderFromTrustedProxy(t *testing.T) {
	router := newRateLimitedRouterBehind([]string{"10.0.0.0/8"})

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := requestFrom(http.MethodGet, "/api/test", "10.0.0.5", "")
		req.Header.Set("X-Forwarded-For", client)
		if resp := serve(router, req); resp.Code != http.StatusOK {
			t.Fatalf("expected %s allowed through proxy, got %d", client, resp.Code)
		}
	}

	again := requestFrom(http.MethodGet, "/api/test", "10.0.0.5", "")
	again.Header.Set("X-Forwarded-For", "203.0.113.1")
	if resp := serve(router, again); resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected repeat client limited, got %d", resp.Code)
	}
}
