package config

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// 채팅 백엔드 식별자입니다.
const (
	ChatProviderOpenAI = "openai"
	ChatProviderGemini = "gemini"
)

// 사용량 카운터 저장소 식별자입니다.
const (
	QuotaBackendMemory   = "memory"
	QuotaBackendValkey   = "valkey"
	QuotaBackendPostgres = "postgres"
)

// OpenAIConfig: OpenAI 호출 설정입니다.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	ImageModel     string
	TimeoutSeconds int
}

// GeminiConfig: Gemini 모델 설정입니다.
type GeminiConfig struct {
	APIKeys         []string
	Model           string
	Temperature     float64
	MaxOutputTokens int
	TimeoutSeconds  int
}

// PrimaryKey: 기본 API 키를 반환합니다.
func (g GeminiConfig) PrimaryKey() string {
	if len(g.APIKeys) == 0 {
		return ""
	}
	return g.APIKeys[0]
}

// ReplicateConfig: Replicate 모델 설정입니다.
type ReplicateConfig struct {
	APIToken       string
	BaseURL        string
	MusicModel     string
	VideoModel     string
	TimeoutSeconds int
}

// ChatConfig: 채팅 완성에 사용할 백엔드 설정입니다.
type ChatConfig struct {
	Provider string
}

// QuotaConfig: 무료 사용량 게이트 설정입니다.
type QuotaConfig struct {
	FreeLimit int64
	Backend   string
	KeyPrefix string
}

// StoreConfig: Valkey 연결 설정입니다.
type StoreConfig struct {
	URL          string
	DisableCache bool
}

// AuthConfig: 호출자 JWT 검증 설정입니다.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  string
}

// StripeConfig: 구독 웹훅 설정입니다.
type StripeConfig struct {
	WebhookSecret          string
	SubscriptionCacheTTL   int
	SubscriptionCacheSize  int
	SubscriptionGraceHours int
}

// Enabled: 웹훅 시크릿이 설정되었는지 확인합니다.
func (s StripeConfig) Enabled() bool {
	return strings.TrimSpace(s.WebhookSecret) != ""
}

// LoggingConfig: 로깅 설정입니다.
type LoggingConfig struct {
	Level      string
	LogDir     string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// HTTPConfig: HTTP 서버 설정입니다.
type HTTPConfig struct {
	Host         string
	Port         int
	HTTP2Enabled bool
	CORSOrigins  []string

	// TrustedProxies 는 X-Forwarded-For 를 신뢰할 프록시 주소/CIDR 목록이다. 비어 있으면 원격 주소만 쓴다.
	TrustedProxies []string
}

// HTTPAuthConfig: 관리자 API 키 인증 설정입니다.
type HTTPAuthConfig struct {
	APIKey string
}

// HTTPRateLimitConfig: 요청 제한 설정입니다.
type HTTPRateLimitConfig struct {
	RequestsPerMinute int
	CacheSize         int
	CacheTTLSeconds   int
}

// DatabaseConfig: DB 연결 및 저장 설정입니다.
type DatabaseConfig struct {
	Host                                 string
	Port                                 int
	Name                                 string
	User                                 string
	Password                             string
	MinPool                              int
	MaxPool                              int
	ConnMaxLifetimeMinutes               int
	ConnMaxIdleTimeMinutes               int
	UsageBatchEnabled                    bool
	UsageBatchFlushIntervalSeconds       int
	UsageBatchFlushTimeoutSeconds        int
	UsageBatchMaxPendingRequests         int
	UsageBatchMaxBackoffSeconds          int
	UsageBatchErrorLogMaxIntervalSeconds int
}

// DSN: DB 접속 문자열을 반환합니다.
func (d DatabaseConfig) DSN() string {
	host := net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
	u := &url.URL{
		Scheme: "postgresql",
		Host:   host,
		Path:   "/" + d.Name,
	}
	if d.Password == "" {
		u.User = url.User(d.User)
	} else {
		u.User = url.UserPassword(d.User, d.Password)
	}
	return u.String()
}

// TelemetryConfig: OpenTelemetry 설정입니다.
type TelemetryConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRate     float64
}

// Config: 애플리케이션 전체 설정입니다.
type Config struct {
	OpenAI        OpenAIConfig
	Gemini        GeminiConfig
	Replicate     ReplicateConfig
	Chat          ChatConfig
	Quota         QuotaConfig
	Store         StoreConfig
	Auth          AuthConfig
	Stripe        StripeConfig
	Logging       LoggingConfig
	HTTP          HTTPConfig
	HTTPAuth      HTTPAuthConfig
	HTTPRateLimit HTTPRateLimitConfig
	Database      DatabaseConfig
	Telemetry     TelemetryConfig
}
