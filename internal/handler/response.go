package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler/shared"
)

// writeError: 에러 응답을 작성합니다 (shared.WriteError 위임).
func writeError(c *gin.Context, err error) {
	shared.WriteError(c, err)
}

// readObject: 요청 본문을 JSON 객체로 읽습니다 (shared.ReadObject 위임).
func readObject(c *gin.Context) (map[string]any, bool) {
	return shared.ReadObject(c)
}
