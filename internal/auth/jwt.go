package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

var (
	// ErrMissingToken 는 Authorization 헤더에 bearer 토큰이 없을 때 반환된다.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrEmptySubject 는 토큰의 sub 클레임이 비어 있을 때 반환된다.
	ErrEmptySubject = errors.New("token subject is empty")
)

// Claims 는 호출자 토큰 클레임이다. sub 가 호출자 식별자다.
type Claims struct {
	jwt.RegisteredClaims
}

// JWTResolver 는 HS256 bearer 토큰으로 호출자를 식별한다.
type JWTResolver struct {
	secret []byte
	parser *jwt.Parser
	logger *slog.Logger
}

// NewJWTResolver 는 설정된 시크릿으로 토큰 검증기를 생성한다.
func NewJWTResolver(cfg config.AuthConfig, logger *slog.Logger) (*JWTResolver, error) {
	secret := strings.TrimSpace(cfg.JWTSecret)
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30 * time.Second),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	return &JWTResolver{
		secret: []byte(secret),
		parser: jwt.NewParser(opts...),
		logger: logger,
	}, nil
}

// ResolveCaller 는 요청의 bearer 토큰을 검증하고 호출자 식별자를 반환한다.
// 토큰이 없거나 유효하지 않으면 false 를 반환한다.
func (r *JWTResolver) ResolveCaller(req *http.Request) (string, bool) {
	if r == nil || req == nil {
		return "", false
	}
	token, err := BearerToken(req.Header.Get("Authorization"))
	if err != nil {
		return "", false
	}
	callerID, err := r.Verify(token)
	if err != nil {
		r.logger.DebugContext(req.Context(), "caller_token_rejected", "err", err)
		return "", false
	}
	return callerID, true
}

// Verify 는 토큰 서명과 클레임을 검증하고 sub 를 반환한다.
func (r *JWTResolver) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	if _, err := r.parser.ParseWithClaims(tokenString, claims, r.keyFunc); err != nil {
		return "", fmt.Errorf("parse token: %w", err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", ErrEmptySubject
	}
	return subject, nil
}

func (r *JWTResolver) keyFunc(token *jwt.Token) (any, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return r.secret, nil
}

// Issue 는 같은 시크릿으로 호출자 토큰을 발급한다. 운영 도구와 테스트에서 쓴다.
func (r *JWTResolver) Issue(callerID string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(callerID) == "" {
		return "", ErrEmptySubject
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   callerID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(r.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// BearerToken 은 Authorization 헤더 값에서 bearer 토큰을 꺼낸다.
func BearerToken(header string) (string, error) {
	value := strings.TrimSpace(header)
	if len(value) < 7 || !strings.EqualFold(value[:7], "bearer ") {
		return "", ErrMissingToken
	}
	token := strings.TrimSpace(value[7:])
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
