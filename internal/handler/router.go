package handler

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/health"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
)

// NewRouter 는 HTTP 라우터를 구성한다.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	callers middleware.CallerResolver,
	checker *health.Checker,
	metricsStore *metrics.Store,
	generationHandler *GenerationHandler,
	usageHandler *UsageHandler,
	webhookHandler *WebhookHandler,
) *gin.Engine {
	setGinMode(cfg.Logging.Level)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		logger.Warn("trusted_proxies_invalid", "proxies", cfg.HTTP.TrustedProxies, "err", err)
		_ = router.SetTrustedProxies(nil)
	}
	if cfg.Telemetry.Enabled {
		router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	}
	router.Use(
		middleware.RequestID(),
		middleware.ResolveCaller(callers),
		middleware.RequestLogger(logger),
		gin.Recovery(),
	)
	if len(cfg.HTTP.CORSOrigins) > 0 {
		router.Use(cors.New(newCORSConfig(cfg.HTTP.CORSOrigins)))
	}
	router.Use(
		newGzipMiddleware(),
		middleware.AdminAPIKey(cfg),
		middleware.RateLimit(cfg),
	)

	RegisterHealthRoutes(router, checker, metricsStore)
	generationHandler.RegisterRoutes(router)
	usageHandler.RegisterRoutes(router)
	webhookHandler.RegisterRoutes(router)

	return router
}

func newCORSConfig(origins []string) cors.Config {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.APIKeyHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	corsConfig.MaxAge = 12 * time.Hour
	return corsConfig
}

func newGzipMiddleware() gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression, gzip.WithCustomShouldCompressFn(shouldCompress))
}

// shouldCompress 는 gzip 을 요청한 클라이언트에만 압축한다.
// 웹훅 서명 검증과 헬스 체크는 압축하지 않는다.
func shouldCompress(c *gin.Context) bool {
	if !strings.Contains(c.GetHeader("Accept-Encoding"), "gzip") {
		return false
	}
	if strings.Contains(c.GetHeader("Connection"), "Upgrade") {
		return false
	}
	path := c.Request.URL.Path
	return !strings.HasPrefix(path, "/health") && path != "/api/webhook/stripe"
}

func setGinMode(level string) {
	if strings.EqualFold(strings.TrimSpace(level), "debug") {
		gin.SetMode(gin.DebugMode)
		return
	}
	gin.SetMode(gin.ReleaseMode)
}
