package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/telemetry"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

const telemetryShutdownTimeout = 5 * time.Second

// App: 애플리케이션 구성 요소를 묶는다.
type App struct {
	Server        *http.Server
	Logger        *slog.Logger
	Config        *config.Config
	Telemetry     *telemetry.Provider
	QuotaStore    quota.Store
	Database      *storage.Postgres
	UsageRecorder *usage.Recorder
}

// NewApp: App 인스턴스를 생성합니다.
func NewApp(
	server *http.Server,
	logger *slog.Logger,
	cfg *config.Config,
	telemetryProvider *telemetry.Provider,
	quotaStore quota.Store,
	database *storage.Postgres,
	usageRecorder *usage.Recorder,
) *App {
	return &App{
		Server:        server,
		Logger:        logger,
		Config:        cfg,
		Telemetry:     telemetryProvider,
		QuotaStore:    quotaStore,
		Database:      database,
		UsageRecorder: usageRecorder,
	}
}

// Close: 앱 리소스를 정리합니다. 남은 사용량 배치를 먼저 플러시한다.
func (a *App) Close() {
	if a.UsageRecorder != nil {
		a.UsageRecorder.Close()
	}
	if a.QuotaStore != nil {
		a.QuotaStore.Close()
	}
	if a.Database != nil {
		a.Database.Close()
	}
	if a.Telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
		defer cancel()
		if err := a.Telemetry.Shutdown(ctx); err != nil && a.Logger != nil {
			a.Logger.Warn("telemetry_shutdown_failed", "err", err)
		}
	}
}
