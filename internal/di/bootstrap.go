package di

import (
	"fmt"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/server"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/subscription"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

// InitializeApp 은 애플리케이션 의존성을 초기화하고 App 인스턴스를 반환한다.
func InitializeApp() (*App, error) {
	cfg, err := config.ProvideConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return initializeWithConfig(cfg)
}

func initializeWithConfig(cfg *config.Config) (*App, error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	telemetryProvider, err := ProvideTelemetry(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	metricsStore := metrics.NewStore()
	database := ProvideDatabase(cfg, logger)

	quotaStore, err := quota.NewStore(cfg, database, logger)
	if err != nil {
		return nil, fmt.Errorf("quota store: %w", err)
	}

	subscriptionRepository := subscription.NewRepository(database)
	subscriptionChecker := ProvideSubscriptionChecker(cfg, subscriptionRepository)
	gate, err := ProvideGate(cfg, quotaStore, subscriptionChecker, logger)
	if err != nil {
		quotaStore.Close()
		return nil, err
	}

	usageRepository := usage.NewRepository(database)
	usageRecorder := usage.NewRecorder(cfg, usageRepository, logger)

	callerResolver, err := ProvideCallerResolver(cfg, logger)
	if err != nil {
		quotaStore.Close()
		return nil, err
	}

	replicateClient, err := ProvideReplicateClient(cfg)
	if err != nil {
		quotaStore.Close()
		return nil, err
	}
	openaiClient := ProvideOpenAIClient(cfg)
	chat := ProvideChatCompleter(cfg, openaiClient, ProvideGeminiClient(cfg))

	codeInstruction, err := ProvideCodeInstruction()
	if err != nil {
		quotaStore.Close()
		return nil, err
	}

	generationHandler, err := handler.NewGenerationHandler(
		gate,
		chat,
		openaiClient,
		replicateClient,
		codeInstruction,
		metricsStore,
		usageRecorder,
		logger,
	)
	if err != nil {
		quotaStore.Close()
		return nil, fmt.Errorf("generation handler: %w", err)
	}
	usageHandler := handler.NewUsageHandler(gate, ProvideUsageStore(usageRepository), metricsStore, logger)
	webhookHandler := handler.NewWebhookHandler(
		ProvideWebhookProcessor(cfg, subscriptionRepository, subscriptionChecker, logger),
		logger,
	)

	router := handler.NewRouter(
		cfg,
		logger,
		callerResolver,
		ProvideHealthChecker(cfg, gate, database),
		metricsStore,
		generationHandler,
		usageHandler,
		webhookHandler,
	)
	httpServer := server.NewHTTPServer(cfg, router)

	return NewApp(httpServer, logger, cfg, telemetryProvider, quotaStore, database, usageRecorder), nil
}
