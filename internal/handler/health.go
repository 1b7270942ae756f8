package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/health"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
)

// ProvidersResponse: 제공자 설정 상태 응답입니다.
type ProvidersResponse struct {
	Status    string                      `json:"status"`
	Providers map[string]health.Component `json:"providers"`
}

// RegisterHealthRoutes: 상태 확인 라우트와 Prometheus 노출 라우트를 등록합니다.
func RegisterHealthRoutes(router gin.IRouter, checker *health.Checker, metricsStore *metrics.Store) {
	router.GET("/health", func(c *gin.Context) {
		// Liveness: 외부 의존성(Valkey/DB 등) 상태로 인해 다운 판정되지 않도록 shallow로 유지합니다.
		payload := checker.Collect(c.Request.Context(), false)
		c.JSON(http.StatusOK, payload)
	})

	router.GET("/health/ready", func(c *gin.Context) {
		payload := checker.Collect(c.Request.Context(), true)
		status := http.StatusOK
		if payload.Status != "ok" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, payload)
	})

	router.GET("/health/providers", func(c *gin.Context) {
		providers := checker.Providers()
		status := "ok"
		for _, component := range providers {
			if component.Status != "ok" {
				status = "degraded"
				break
			}
		}
		c.JSON(http.StatusOK, ProvidersResponse{Status: status, Providers: providers})
	})

	if metricsStore != nil {
		router.GET("/metrics", gin.WrapH(metricsStore.Handler()))
	}
}
