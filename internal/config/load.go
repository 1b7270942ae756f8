package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

const (
	defaultMusicModel = "riffusion/riffusion:8cf61ea6c56afd61d8f5b9ffd14d7c216c0a93844ce2d82ac1c9ecc9c7f24e05"
	defaultVideoModel = "anotherjesse/zeroscope-v2-xl:9f747673945c62801b13b84701c783929c0ee784e4748ec062204894dda1a351"
)

var (
	configOnce  sync.Once
	configValue *Config
)

// Load 는 환경 변수 기반 설정을 로드한다.
func Load() *Config {
	configOnce.Do(func() {
		_ = godotenv.Load()
		configValue = buildConfig()
	})
	return configValue
}

// ProvideConfig 는 설정을 로드하고 검증한다.
func ProvideConfig() (*Config, error) {
	cfg := Load()
	if cfg == nil {
		return nil, errors.New("config not initialized")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 는 설정 유효성을 검사한다.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Chat.Provider {
	case ChatProviderOpenAI, ChatProviderGemini:
	default:
		return fmt.Errorf("unsupported chat provider: %s", c.Chat.Provider)
	}
	switch c.Quota.Backend {
	case QuotaBackendMemory, QuotaBackendValkey, QuotaBackendPostgres:
	default:
		return fmt.Errorf("unsupported quota backend: %s", c.Quota.Backend)
	}
	if c.Quota.FreeLimit < 1 {
		return fmt.Errorf("quota free limit must be positive: %d", c.Quota.FreeLimit)
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("AUTH_JWT_SECRET is required")
	}
	return nil
}

// LogEnvStatus 는 환경 설정 상태를 로그로 남긴다.
func LogEnvStatus(cfg *Config, logger *slog.Logger) {
	if logger == nil || cfg == nil {
		return
	}

	logger.Debug(
		"env_status",
		"env_file", fileExists(".env"),
		"chat_provider", cfg.Chat.Provider,
		"openai_key", maskSecret(cfg.OpenAI.APIKey),
		"openai_chat_model", cfg.OpenAI.ChatModel,
		"openai_image_model", cfg.OpenAI.ImageModel,
		"gemini_keys", len(cfg.Gemini.APIKeys),
		"gemini_model", cfg.Gemini.Model,
		"replicate_token", maskSecret(cfg.Replicate.APIToken),
		"quota_backend", cfg.Quota.Backend,
		"quota_free_limit", cfg.Quota.FreeLimit,
		"store_url", cfg.Store.URL,
		"db_host", cfg.Database.Host,
		"db_name", cfg.Database.Name,
		"stripe_webhook", cfg.Stripe.Enabled(),
	)

	if cfg.OpenAI.APIKey == "" {
		logger.Error("env_missing_openai_api_key")
	}
	if cfg.Replicate.APIToken == "" {
		logger.Error("env_missing_replicate_api_token")
	}
	if cfg.Chat.Provider == ChatProviderGemini && len(cfg.Gemini.APIKeys) == 0 {
		logger.Error("env_missing_google_api_key")
	}
}

func buildConfig() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			APIKey:         getEnvString("OPENAI_API_KEY", ""),
			BaseURL:        getEnvString("OPENAI_BASE_URL", ""),
			ChatModel:      getEnvString("OPENAI_CHAT_MODEL", "gpt-3.5-turbo"),
			ImageModel:     getEnvString("OPENAI_IMAGE_MODEL", "dall-e-2"),
			TimeoutSeconds: max(1, getEnvInt("OPENAI_TIMEOUT", 60)),
		},
		Gemini: GeminiConfig{
			APIKeys:         parseAPIKeys(),
			Model:           getEnvString("GEMINI_MODEL", "gemini-2.5-flash"),
			Temperature:     getEnvFloat("GEMINI_TEMPERATURE", 0.7),
			MaxOutputTokens: getEnvNonNegativeInt("GEMINI_MAX_OUTPUT_TOKENS", 8192),
			TimeoutSeconds:  max(1, getEnvInt("GEMINI_TIMEOUT", 60)),
		},
		Replicate: ReplicateConfig{
			APIToken:       getEnvString("REPLICATE_API_TOKEN", ""),
			BaseURL:        getEnvString("REPLICATE_BASE_URL", ""),
			MusicModel:     getEnvString("REPLICATE_MUSIC_MODEL", defaultMusicModel),
			VideoModel:     getEnvString("REPLICATE_VIDEO_MODEL", defaultVideoModel),
			TimeoutSeconds: max(1, getEnvInt("REPLICATE_TIMEOUT", 300)),
		},
		Chat: ChatConfig{
			Provider: strings.ToLower(getEnvString("CHAT_PROVIDER", ChatProviderOpenAI)),
		},
		Quota: QuotaConfig{
			FreeLimit: int64(getEnvInt("QUOTA_FREE_LIMIT", 5)),
			Backend:   strings.ToLower(getEnvString("QUOTA_BACKEND", QuotaBackendPostgres)),
			KeyPrefix: getEnvString("QUOTA_KEY_PREFIX", "aigw:"),
		},
		Store: StoreConfig{
			URL:          getEnvString("STORE_URL", "redis://localhost:6379"),
			DisableCache: getEnvBool("STORE_DISABLE_CACHE", false),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvString("AUTH_JWT_SECRET", ""),
			Issuer:    getEnvString("AUTH_JWT_ISSUER", ""),
			Audience:  getEnvString("AUTH_JWT_AUDIENCE", ""),
		},
		Stripe: StripeConfig{
			WebhookSecret:          getEnvString("STRIPE_WEBHOOK_SECRET", ""),
			SubscriptionCacheTTL:   max(1, getEnvNonNegativeInt("SUBSCRIPTION_CACHE_TTL_SECONDS", 30)),
			SubscriptionCacheSize:  max(1, getEnvNonNegativeInt("SUBSCRIPTION_CACHE_SIZE", 10000)),
			SubscriptionGraceHours: getEnvNonNegativeInt("SUBSCRIPTION_GRACE_HOURS", 24),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			LogDir:     getEnvString("LOG_DIR", ""),
			MaxSizeMB:  getEnvInt("LOG_FILE_MAX_SIZE_MB", 1),
			MaxBackups: getEnvInt("LOG_FILE_MAX_BACKUPS", 30),
			MaxAgeDays: getEnvInt("LOG_FILE_MAX_AGE_DAYS", 7),
			Compress:   getEnvBool("LOG_FILE_COMPRESS", true),
		},
		HTTP: HTTPConfig{
			Host:           getEnvString("HTTP_HOST", "127.0.0.1"),
			Port:           getEnvInt("HTTP_PORT", 40610),
			HTTP2Enabled:   getEnvBool("HTTP2_ENABLED", true),
			CORSOrigins:    getEnvList("HTTP_CORS_ORIGINS", nil),
			TrustedProxies: getEnvList("HTTP_TRUSTED_PROXIES", nil),
		},
		HTTPAuth: HTTPAuthConfig{
			APIKey: getEnvString("HTTP_API_KEY", ""),
		},
		HTTPRateLimit: HTTPRateLimitConfig{
			RequestsPerMinute: getEnvNonNegativeInt("HTTP_RATE_LIMIT_RPM", 0),
			CacheSize:         max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_SIZE", 10000)),
			CacheTTLSeconds:   max(1, getEnvNonNegativeInt("HTTP_RATE_LIMIT_CACHE_TTL_SECONDS", 120)),
		},
		Database: DatabaseConfig{
			Host:                                 getEnvString("DB_HOST", "localhost"),
			Port:                                 getEnvInt("DB_PORT", 5432),
			Name:                                 getEnvString("DB_NAME", "aigateway"),
			User:                                 getEnvString("DB_USER", "aigateway"),
			Password:                             getEnvString("DB_PASSWORD", ""),
			MinPool:                              getEnvInt("DB_MIN_POOL", 1),
			MaxPool:                              getEnvInt("DB_MAX_POOL", 5),
			ConnMaxLifetimeMinutes:               getEnvNonNegativeInt("DB_CONN_MAX_LIFETIME_MINUTES", 60),
			ConnMaxIdleTimeMinutes:               getEnvNonNegativeInt("DB_CONN_MAX_IDLE_TIME_MINUTES", 10),
			UsageBatchEnabled:                    getEnvBool("DB_USAGE_BATCH_ENABLED", false),
			UsageBatchFlushIntervalSeconds:       max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_FLUSH_INTERVAL_SECONDS", 1)),
			UsageBatchFlushTimeoutSeconds:        max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_FLUSH_TIMEOUT_SECONDS", 5)),
			UsageBatchMaxPendingRequests:         max(1, getEnvNonNegativeInt("DB_USAGE_BATCH_MAX_PENDING_REQUESTS", 50)),
			UsageBatchMaxBackoffSeconds:          getEnvNonNegativeInt("DB_USAGE_BATCH_MAX_BACKOFF_SECONDS", 60),
			UsageBatchErrorLogMaxIntervalSeconds: getEnvNonNegativeInt("DB_USAGE_BATCH_ERROR_LOG_MAX_INTERVAL_SECONDS", 60),
		},
		Telemetry: readTelemetryConfig(),
	}
}
