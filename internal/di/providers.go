package di

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/auth"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/gemini"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/health"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/logging"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/openai"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/prompt"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/replicate"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/subscription"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/telemetry"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

// ProvideLogger: 로거를 구성해 반환합니다.
// OTel이 활성화된 경우 로그에 trace_id/span_id가 자동으로 추가됩니다.
func ProvideLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

// ProvideTelemetry: 트레이서 provider 를 초기화합니다.
func ProvideTelemetry(cfg *config.Config) (*telemetry.Provider, error) {
	provider, err := telemetry.NewProvider(context.Background(), cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	return provider, nil
}

// ProvideDatabase: 지연 연결 Postgres 핸들을 만듭니다.
func ProvideDatabase(cfg *config.Config, logger *slog.Logger) *storage.Postgres {
	return storage.NewPostgres(cfg, logger)
}

// ProvideCallerResolver: JWT 호출자 식별기를 만듭니다.
func ProvideCallerResolver(cfg *config.Config, logger *slog.Logger) (*auth.JWTResolver, error) {
	resolver, err := auth.NewJWTResolver(cfg.Auth, logger)
	if err != nil {
		return nil, fmt.Errorf("jwt resolver: %w", err)
	}
	return resolver, nil
}

// ProvideSubscriptionChecker: Stripe 웹훅이 설정된 경우에만 구독 판정기를 만듭니다.
func ProvideSubscriptionChecker(cfg *config.Config, repo *subscription.Repository) *subscription.Checker {
	if !cfg.Stripe.Enabled() {
		return nil
	}
	return subscription.NewChecker(repo, cfg.Stripe)
}

// ProvideGate: 사용량 게이트를 만듭니다. 구독 판정기가 없으면 모두 무료 호출자로 본다.
func ProvideGate(cfg *config.Config, store quota.Store, checker *subscription.Checker, logger *slog.Logger) (*quota.Gate, error) {
	var subscriptions quota.SubscriptionChecker
	if checker != nil {
		subscriptions = checker
	}
	gate, err := quota.NewGate(store, cfg.Quota.FreeLimit, subscriptions, logger)
	if err != nil {
		return nil, fmt.Errorf("quota gate: %w", err)
	}
	return gate, nil
}

// ProvideWebhookProcessor: 구독 판정기가 있을 때만 웹훅 처리기를 만듭니다.
func ProvideWebhookProcessor(
	cfg *config.Config,
	repo *subscription.Repository,
	checker *subscription.Checker,
	logger *slog.Logger,
) handler.WebhookProcessor {
	if checker == nil {
		return nil
	}
	return subscription.NewWebhookProcessor(cfg.Stripe.WebhookSecret, repo, checker, logger)
}

// ProvideUsageStore: 일자별 통계 저장소를 인터페이스로 노출합니다.
func ProvideUsageStore(repo *usage.Repository) usage.Store {
	return repo
}

// ProvideOpenAIClient: OpenAI 어댑터를 만듭니다.
func ProvideOpenAIClient(cfg *config.Config) *openai.Client {
	return openai.NewClient(cfg.OpenAI)
}

// ProvideGeminiClient: Gemini 어댑터를 만듭니다.
func ProvideGeminiClient(cfg *config.Config) *gemini.Client {
	return gemini.NewClient(cfg.Gemini)
}

// ProvideReplicateClient: Replicate 어댑터를 만듭니다.
func ProvideReplicateClient(cfg *config.Config) (*replicate.Client, error) {
	client, err := replicate.NewClient(cfg.Replicate)
	if err != nil {
		return nil, fmt.Errorf("replicate client: %w", err)
	}
	return client, nil
}

// ProvideChatCompleter: CHAT_PROVIDER 에 맞는 채팅 백엔드를 고릅니다.
func ProvideChatCompleter(cfg *config.Config, openaiClient *openai.Client, geminiClient *gemini.Client) llm.ChatCompleter {
	if cfg.Chat.Provider == config.ChatProviderGemini {
		return geminiClient
	}
	return openaiClient
}

// ProvideCodeInstruction: 임베드된 프롬프트에서 code 기능 시스템 지시문을 읽습니다.
func ProvideCodeInstruction() (handler.CodeInstruction, error) {
	bundle, err := prompt.Load()
	if err != nil {
		return "", fmt.Errorf("load prompts: %w", err)
	}
	system, err := bundle.System(prompt.NameCode)
	if err != nil {
		return "", fmt.Errorf("code prompt: %w", err)
	}
	return handler.CodeInstruction(system), nil
}

// ProvideHealthChecker: 카운터 저장소와 DB 를 deep probe 로 등록합니다.
func ProvideHealthChecker(cfg *config.Config, gate *quota.Gate, database *storage.Postgres) *health.Checker {
	return health.NewChecker(cfg, map[string]health.Pinger{
		"quota_store": gate,
		"database":    database,
	})
}
