package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/cache"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
)

// 웹훅은 제공자 재시도가 있으므로 제한하지 않는다.
var rateLimitExempt = map[string]struct{}{
	"/api/webhook/stripe": {},
}

// RateLimit 는 호출자(없으면 IP)별 분당 요청 제한 미들웨어다.
func RateLimit(cfg *config.Config) gin.HandlerFunc {
	limit := 0
	cacheSize := 0
	cacheTTL := time.Duration(0)
	if cfg != nil {
		limit = cfg.HTTPRateLimit.RequestsPerMinute
		cacheSize = cfg.HTTPRateLimit.CacheSize
		cacheTTL = time.Duration(cfg.HTTPRateLimit.CacheTTLSeconds) * time.Second
	}
	if cacheTTL < time.Minute {
		cacheTTL = time.Minute
	}

	counter := cache.NewTTLCache[string, int](cacheSize, cacheTTL)

	return func(c *gin.Context) {
		if limit <= 0 || !shouldRateLimit(c.Request) {
			c.Next()
			return
		}

		identity := rateLimitIdentity(c)
		window := time.Now().Unix() / 60
		key := fmt.Sprintf("%s:%d", identity, window)

		count := counter.Modify(key, func(current int, _ bool) int { return current + 1 })
		if count > limit {
			details := map[string]any{
				"path":             c.Request.URL.Path,
				"identity":         identity,
				"limit_per_minute": limit,
			}
			status, payload := httperror.Response(httperror.NewRateLimitExceeded(details), GetRequestID(c))
			c.AbortWithStatusJSON(status, payload)
			return
		}

		c.Next()
	}
}

func shouldRateLimit(req *http.Request) bool {
	if req.Method == http.MethodOptions {
		return false
	}
	if _, ok := rateLimitExempt[req.URL.Path]; ok {
		return false
	}
	return strings.HasPrefix(req.URL.Path, "/api/")
}

func rateLimitIdentity(c *gin.Context) string {
	if callerID, ok := GetCallerID(c); ok {
		return "caller:" + hashKey(callerID)
	}

	// 전달 헤더는 엔진의 신뢰 프록시 설정을 통과한 경우에만 ClientIP 에 반영된다.
	if ip := c.ClientIP(); ip != "" {
		return "ip:" + ip
	}

	return "ip:unknown"
}

func hashKey(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])[:16]
}
