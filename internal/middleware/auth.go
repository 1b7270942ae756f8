package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
)

// AdminPathPrefix 는 관리자 API 경로 접두사다.
const AdminPathPrefix = "/api/admin/"

// APIKeyHeader 는 관리자 API 키 헤더다.
const APIKeyHeader = "X-API-Key"

// AdminAPIKey 는 관리자 경로에 정적 API 키를 요구하는 미들웨어다.
// 키가 설정되지 않으면 관리자 경로는 항상 거절된다.
func AdminAPIKey(cfg *config.Config) gin.HandlerFunc {
	expected := ""
	if cfg != nil {
		expected = strings.TrimSpace(cfg.HTTPAuth.APIKey)
	}

	return func(c *gin.Context) {
		if !isAdminPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		provided := strings.TrimSpace(c.GetHeader(APIKeyHeader))
		if expected == "" || provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			details := map[string]any{"path": c.Request.URL.Path, "admin_enabled": expected != ""}
			status, payload := httperror.Response(httperror.NewUnauthorized(details), GetRequestID(c))
			c.AbortWithStatusJSON(status, payload)
			return
		}

		c.Next()
	}
}

func isAdminPath(path string) bool {
	return strings.HasPrefix(path, AdminPathPrefix)
}
