package shared

import (
	"bytes"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
)

// WriteError 는 에러 응답을 작성한다.
func WriteError(c *gin.Context, err error) {
	if c == nil {
		return
	}
	status, payload := httperror.Response(err, middleware.GetRequestID(c))
	c.AbortWithStatusJSON(status, payload)
}

// ReadObject 는 요청 본문을 JSON 객체로 읽는다. 빈 본문은 빈 객체로 취급한다.
func ReadObject(c *gin.Context) (map[string]any, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.GetRawData()
	if err != nil {
		WriteError(c, httperror.NewInvalidInput(fmt.Sprintf("read body: %v", err)))
		return nil, false
	}
	body := make(map[string]any)
	if len(bytes.TrimSpace(raw)) == 0 {
		return body, true
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		WriteError(c, httperror.NewValidationError(err))
		return nil, false
	}
	if body == nil {
		body = make(map[string]any)
	}
	return body, true
}

// ReadRaw 는 서명 검증 등을 위해 요청 본문을 그대로 읽는다.
func ReadRaw(c *gin.Context) ([]byte, bool) {
	raw, err := c.GetRawData()
	if err != nil {
		WriteError(c, httperror.NewInvalidInput(fmt.Sprintf("read body: %v", err)))
		return nil, false
	}
	return raw, true
}
