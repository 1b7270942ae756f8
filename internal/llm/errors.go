package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// 제공자 식별자입니다.
const (
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderReplicate = "replicate"
)

var displayNames = map[string]string{
	ProviderOpenAI:    "OpenAI",
	ProviderGemini:    "Gemini",
	ProviderReplicate: "Replicate",
}

// DisplayName 은 사용자 메시지에 쓰는 제공자 표기를 반환한다.
func DisplayName(provider string) string {
	if name, ok := displayNames[provider]; ok {
		return name
	}
	return provider
}

var (
	// ErrMissingCredentials 는 제공자 API 키가 설정되지 않았을 때 반환된다.
	ErrMissingCredentials = errors.New("missing provider credentials")
	// ErrEmptyResponse 는 제공자가 빈 응답을 돌려줬을 때 반환된다.
	ErrEmptyResponse = errors.New("empty provider response")
)

// ProviderError 는 외부 AI 제공자 호출 실패를 표현한다.
// StatusCode 는 제공자가 돌려준 HTTP 상태이며 알 수 없으면 0이다.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error 는 오류 메시지를 반환한다.
func (e *ProviderError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: status=%d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Unwrap 은 원인 오류를 반환한다.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// RateLimited 는 제공자가 429를 돌려줬는지 확인한다.
func (e *ProviderError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// TimedOut 은 제공자 호출이 시간 초과로 끝났는지 확인한다.
func (e *ProviderError) TimedOut() bool {
	return e.StatusCode == http.StatusGatewayTimeout || IsTimeout(e.Err)
}

// IsTimeout 은 컨텍스트 또는 네트워크 타임아웃인지 확인한다.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// NewProviderError 는 원인 오류를 감싼 ProviderError 를 만든다.
func NewProviderError(provider string, status int, err error) *ProviderError {
	message := "request failed"
	if err != nil {
		message = err.Error()
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Message:    message,
		Err:        err,
	}
}
