package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const callerIDKey = "caller_id"

// CallerResolver 는 요청에서 호출자 식별자를 얻는다.
type CallerResolver interface {
	ResolveCaller(req *http.Request) (string, bool)
}

// ResolveCaller 는 식별된 호출자를 gin 컨텍스트에 저장한다.
// 식별에 실패해도 요청을 막지 않는다. 거절은 각 핸들러가 한다.
func ResolveCaller(resolver CallerResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if resolver != nil {
			if callerID, ok := resolver.ResolveCaller(c.Request); ok {
				c.Set(callerIDKey, callerID)
			}
		}
		c.Next()
	}
}

// GetCallerID: 컨텍스트의 호출자 식별자를 반환합니다.
func GetCallerID(c *gin.Context) (string, bool) {
	if c == nil {
		return "", false
	}
	callerID := c.GetString(callerIDKey)
	return callerID, callerID != ""
}
