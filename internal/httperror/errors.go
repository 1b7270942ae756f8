package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
)

// ErrorCode 는 API 오류 코드다.
type ErrorCode string

const (
	// ErrorCodeInternal 는 내부 오류 코드다.
	ErrorCodeInternal ErrorCode = "INTERNAL_ERROR"
	// ErrorCodeValidation 는 검증 오류 코드다.
	ErrorCodeValidation ErrorCode = "VALIDATION_ERROR"
	// ErrorCodeUnauthenticated 는 호출자 식별 실패 코드다.
	ErrorCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	// ErrorCodeUnauthorized 는 관리자 API 키 인증 오류 코드다.
	ErrorCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	// ErrorCodeHTTPRateLimit 는 요청 제한 오류 코드다.
	ErrorCodeHTTPRateLimit ErrorCode = "HTTP_RATE_LIMIT"
	// ErrorCodeQuotaExceeded 는 무료 사용 한도 초과 코드다.
	ErrorCodeQuotaExceeded ErrorCode = "QUOTA_EXCEEDED"
	// ErrorCodeUpstreamRateLimited 는 제공자 측 요청 한도 초과 코드다.
	ErrorCodeUpstreamRateLimited ErrorCode = "UPSTREAM_RATE_LIMITED"
	// ErrorCodeUpstream 는 제공자 호출 실패 코드다.
	ErrorCodeUpstream ErrorCode = "UPSTREAM_ERROR"
	// ErrorCodeUpstreamTimeout 는 제공자 타임아웃 코드다.
	ErrorCodeUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	// ErrorCodeInvalidInput 는 입력 오류 코드다.
	ErrorCodeInvalidInput ErrorCode = "INVALID_INPUT"
	// ErrorCodeMissingField 는 필드 누락 코드다.
	ErrorCodeMissingField ErrorCode = "MISSING_FIELD"
	// ErrorCodeServiceUnavailable 는 기능이 구성되지 않았을 때의 코드다.
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

const (
	quotaExceededMessage = "Free trial has expired."
	upstreamMessage      = "Failed to fetch completion"
)

// ErrorResponse 는 API 오류 응답 본문이다.
type ErrorResponse struct {
	ErrorCode string         `json:"error_code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	RequestID *string        `json:"request_id"`
	Details   map[string]any `json:"details"`
}

// Error 는 내부 표준 오류 타입이다.
type Error struct {
	Code    ErrorCode
	Status  int
	Type    string
	Message string
	Details map[string]any
}

// Error 는 오류 메시지를 반환한다.
func (e *Error) Error() string {
	return e.Message
}

// Response 는 오류를 HTTP 응답으로 변환한다.
func Response(err error, requestID string) (int, ErrorResponse) {
	apiErr := FromError(err)
	if apiErr == nil {
		apiErr = NewInternalError("unknown error")
	}

	var requestIDPtr *string
	if requestID != "" {
		requestIDPtr = &requestID
	}

	return apiErr.Status, ErrorResponse{
		ErrorCode: string(apiErr.Code),
		ErrorType: apiErr.Type,
		Message:   apiErr.Message,
		RequestID: requestIDPtr,
		Details:   apiErr.Details,
	}
}

// FromError 는 오류를 내부 오류 타입으로 변환한다.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	if errors.Is(err, quota.ErrQuotaExceeded) {
		return NewQuotaExceeded()
	}

	if errors.Is(err, quota.ErrInvalidCaller) {
		return NewUnauthenticated()
	}

	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		return fromProviderError(providerErr)
	}

	if errors.Is(err, llm.ErrMissingCredentials) {
		return NewUpstreamError("", http.StatusServiceUnavailable)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewUpstreamTimeout("")
	}

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		return NewValidationError(err)
	}

	// 분류되지 않은 오류의 원문은 호출 측에서 로그로만 남긴다.
	return NewInternalError(InternalErrorMessage)
}

func fromProviderError(err *llm.ProviderError) *Error {
	switch {
	case err.RateLimited():
		return NewUpstreamRateLimited(err.Provider)
	case err.TimedOut():
		return NewUpstreamTimeout(err.Provider)
	case errors.Is(err, llm.ErrMissingCredentials):
		return NewUpstreamError(err.Provider, http.StatusServiceUnavailable)
	default:
		apiErr := NewUpstreamError(err.Provider, http.StatusInternalServerError)
		if err.StatusCode > 0 {
			apiErr.Details["upstream_status"] = err.StatusCode
		}
		return apiErr
	}
}

// InternalErrorMessage 는 분류되지 않은 오류의 고정 응답 메시지다.
const InternalErrorMessage = "Internal server error"

// NewInternalError 는 내부 오류를 생성한다.
func NewInternalError(message string) *Error {
	return &Error{
		Code:    ErrorCodeInternal,
		Status:  http.StatusInternalServerError,
		Type:    "InternalError",
		Message: message,
		Details: nil,
	}
}

// NewValidationError 는 검증 오류를 생성한다.
func NewValidationError(err error) *Error {
	return &Error{
		Code:    ErrorCodeValidation,
		Status:  http.StatusBadRequest,
		Type:    "ValidationError",
		Message: "Input validation failed",
		Details: validationDetails(err),
	}
}

// NewMissingField 는 누락 필드 오류를 생성한다.
func NewMissingField(field string) *Error {
	return &Error{
		Code:    ErrorCodeMissingField,
		Status:  http.StatusBadRequest,
		Type:    "MissingFieldError",
		Message: fmt.Sprintf("Field '%s' required", field),
		Details: map[string]any{"field": field},
	}
}

// NewInvalidInput 는 입력 오류를 생성한다.
func NewInvalidInput(message string) *Error {
	return &Error{
		Code:    ErrorCodeInvalidInput,
		Status:  http.StatusBadRequest,
		Type:    "InvalidInputError",
		Message: message,
		Details: nil,
	}
}

// NewUnauthenticated 는 호출자를 식별하지 못했을 때의 오류를 생성한다.
func NewUnauthenticated() *Error {
	return &Error{
		Code:    ErrorCodeUnauthenticated,
		Status:  http.StatusUnauthorized,
		Type:    "UnauthenticatedError",
		Message: "Unauthenticated",
		Details: nil,
	}
}

// NewUnauthorized 는 관리자 API 키 인증 오류를 생성한다.
func NewUnauthorized(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeUnauthorized,
		Status:  http.StatusUnauthorized,
		Type:    "UnauthorizedError",
		Message: "Invalid API key",
		Details: details,
	}
}

// NewRateLimitExceeded 는 요청 제한 오류를 생성한다.
func NewRateLimitExceeded(details map[string]any) *Error {
	return &Error{
		Code:    ErrorCodeHTTPRateLimit,
		Status:  http.StatusTooManyRequests,
		Type:    "HTTPRateLimitExceededError",
		Message: "Rate limit exceeded",
		Details: details,
	}
}

// NewQuotaExceeded 는 무료 사용 한도 초과 오류를 생성한다.
func NewQuotaExceeded() *Error {
	return &Error{
		Code:    ErrorCodeQuotaExceeded,
		Status:  http.StatusForbidden,
		Type:    "QuotaExceededError",
		Message: quotaExceededMessage,
		Details: nil,
	}
}

// NewUpstreamRateLimited 는 제공자 측 요청 한도 초과 오류를 생성한다.
func NewUpstreamRateLimited(provider string) *Error {
	return &Error{
		Code:    ErrorCodeUpstreamRateLimited,
		Status:  http.StatusTooManyRequests,
		Type:    "UpstreamRateLimitedError",
		Message: fmt.Sprintf("%s API quota exceeded. Please check your plan and billing details.", llm.DisplayName(provider)),
		Details: providerDetails(provider),
	}
}

// NewUpstreamTimeout 는 제공자 타임아웃 오류를 생성한다.
func NewUpstreamTimeout(provider string) *Error {
	return &Error{
		Code:    ErrorCodeUpstreamTimeout,
		Status:  http.StatusGatewayTimeout,
		Type:    "UpstreamTimeoutError",
		Message: "Upstream request timed out",
		Details: providerDetails(provider),
	}
}

// NewUpstreamError 는 제공자 호출 실패 오류를 생성한다.
func NewUpstreamError(provider string, status int) *Error {
	return &Error{
		Code:    ErrorCodeUpstream,
		Status:  status,
		Type:    "UpstreamError",
		Message: upstreamMessage,
		Details: providerDetails(provider),
	}
}

// NewServiceUnavailable 는 구성되지 않은 기능을 호출했을 때의 오류를 생성한다.
func NewServiceUnavailable(feature string) *Error {
	return &Error{
		Code:    ErrorCodeServiceUnavailable,
		Status:  http.StatusServiceUnavailable,
		Type:    "ServiceUnavailableError",
		Message: fmt.Sprintf("%s is not configured", feature),
		Details: map[string]any{"feature": feature},
	}
}

func providerDetails(provider string) map[string]any {
	if provider == "" {
		return map[string]any{}
	}
	return map[string]any{"provider": provider}
}

// FieldError 는 필드 오류 상세 정보다.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value"`
}

func validationDetails(err error) map[string]any {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fields := make([]FieldError, 0, len(validationErrors))
		for _, validationErr := range validationErrors {
			fields = append(fields, FieldError{
				Field:   validationErr.Field(),
				Message: validationErr.Error(),
				Value:   validationErr.Value(),
			})
		}
		return map[string]any{"errors": fields}
	}

	return map[string]any{
		"errors": []FieldError{
			{
				Field:   "body",
				Message: err.Error(),
				Value:   nil,
			},
		},
	}
}
