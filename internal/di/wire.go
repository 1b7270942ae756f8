//go:build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/auth"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/openai"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/replicate"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/server"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/subscription"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

func InitializeApp() (*App, error) {
	wire.Build(
		config.ProvideConfig,
		ProvideLogger,
		ProvideTelemetry,
		metrics.NewStore,
		ProvideDatabase,
		wire.Bind(new(storage.Provider), new(*storage.Postgres)),
		quota.NewStore,
		subscription.NewRepository,
		ProvideSubscriptionChecker,
		ProvideGate,
		usage.NewRepository,
		usage.NewRecorder,
		ProvideUsageStore,
		ProvideCallerResolver,
		wire.Bind(new(middleware.CallerResolver), new(*auth.JWTResolver)),
		ProvideOpenAIClient,
		ProvideGeminiClient,
		ProvideReplicateClient,
		ProvideChatCompleter,
		ProvideCodeInstruction,
		wire.Bind(new(handler.Gate), new(*quota.Gate)),
		wire.Bind(new(handler.ImageGenerator), new(*openai.Client)),
		wire.Bind(new(handler.MediaGenerator), new(*replicate.Client)),
		wire.Bind(new(handler.UsageRecorder), new(*usage.Recorder)),
		ProvideWebhookProcessor,
		ProvideHealthChecker,
		handler.NewGenerationHandler,
		handler.NewUsageHandler,
		handler.NewWebhookHandler,
		handler.NewRouter,
		server.NewHTTPServer,
		NewApp,
	)
	return nil, nil
}
