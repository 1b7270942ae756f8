package httperror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
)

func TestFromErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   ErrorCode
		status int
	}{
		{"quota", fmt.Errorf("reserve: %w", quota.ErrQuotaExceeded), ErrorCodeQuotaExceeded, http.StatusForbidden},
		{"caller", quota.ErrInvalidCaller, ErrorCodeUnauthenticated, http.StatusUnauthorized},
		{"rate_limited", llm.NewProviderError(llm.ProviderOpenAI, 429, errors.New("slow down")), ErrorCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{"provider_timeout", llm.NewProviderError(llm.ProviderReplicate, 0, context.DeadlineExceeded), ErrorCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{"provider_failure", llm.NewProviderError(llm.ProviderGemini, 400, errors.New("bad")), ErrorCodeUpstream, http.StatusInternalServerError},
		{"missing_credentials", llm.NewProviderError(llm.ProviderOpenAI, 0, llm.ErrMissingCredentials), ErrorCodeUpstream, http.StatusServiceUnavailable},
		{"deadline", context.DeadlineExceeded, ErrorCodeUpstreamTimeout, http.StatusGatewayTimeout},
		{"unknown", errors.New("boom"), ErrorCodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			apiErr := FromError(tc.err)
			if apiErr == nil || apiErr.Code != tc.code || apiErr.Status != tc.status {
				t.Fatalf("expected %s/%d, got %+v", tc.code, tc.status, apiErr)
			}
		})
	}
}

func TestFromErrorHidesUnclassifiedDetail(t *testing.T) {
	err := fmt.Errorf("reserve quota: %w", fmt.Errorf("get usage count: %w", errors.New("dial tcp 10.0.0.9:6379: connection refused")))
	apiErr := FromError(err)
	if apiErr.Status != http.StatusInternalServerError || apiErr.Message != InternalErrorMessage {
		t.Fatalf("unexpected error: %+v", apiErr)
	}
	if len(apiErr.Details) != 0 {
		t.Fatalf("expected no details, got %v", apiErr.Details)
	}
}

func TestUpstreamMessages(t *testing.T) {
	apiErr := FromError(llm.NewProviderError(llm.ProviderOpenAI, 429, errors.New("quota")))
	expected := "OpenAI API quota exceeded. Please check your plan and billing details."
	if apiErr.Message != expected {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}

	apiErr = FromError(llm.NewProviderError(llm.ProviderReplicate, 422, errors.New("invalid version")))
	if apiErr.Message != "Failed to fetch completion" {
		t.Fatalf("unexpected message: %s", apiErr.Message)
	}
	if apiErr.Details["upstream_status"] != 422 {
		t.Fatalf("expected upstream status detail, got %v", apiErr.Details)
	}

	if FromError(quota.ErrQuotaExceeded).Message != "Free trial has expired." {
		t.Fatalf("unexpected quota message")
	}
}

func TestFromErrorPassesThroughAPIError(t *testing.T) {
	original := NewMissingField("prompt")
	if FromError(fmt.Errorf("wrap: %w", original)) != original {
		t.Fatalf("expected api error passthrough")
	}
	if FromError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestValidationErrorDetails(t *testing.T) {
	type payload struct {
		Prompt string `validate:"required"`
	}
	err := validator.New().Struct(payload{})
	apiErr := FromError(err)
	if apiErr.Code != ErrorCodeValidation || apiErr.Status != http.StatusBadRequest {
		t.Fatalf("expected validation error, got %+v", apiErr)
	}
	fields, ok := apiErr.Details["errors"].([]FieldError)
	if !ok || len(fields) != 1 || fields[0].Field != "Prompt" {
		t.Fatalf("unexpected details: %v", apiErr.Details)
	}
}

func TestResponseIncludesRequestID(t *testing.T) {
	status, payload := Response(NewMissingField("id"), "req-1")
	if status != 400 {
		t.Fatalf("unexpected status: %d", status)
	}
	if payload.RequestID == nil || *payload.RequestID != "req-1" {
		t.Fatalf("expected request id")
	}

	_, payload = Response(NewInternalError("x"), "")
	if payload.RequestID != nil {
		t.Fatalf("expected nil request id")
	}
}

func TestNewMissingField(t *testing.T) {
	err := NewMissingField("messages")
	if err.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 status, got: %d", err.Status)
	}
	if err.Code != ErrorCodeMissingField {
		t.Fatalf("expected missing field error code")
	}
	if err.Message != "Field 'messages' required" {
		t.Fatalf("unexpected message: %s", err.Message)
	}
}

func TestNewValidationErrorFallback(t *testing.T) {
	err := NewValidationError(errors.New("field validation failed"))
	if err.Status != http.StatusBadRequest {
		t.Fatalf("expected 400 status, got: %d", err.Status)
	}
	fields := err.Details["errors"].([]FieldError)
	if fields[0].Field != "body" {
		t.Fatalf("expected body field fallback")
	}
}

func TestNewServiceUnavailable(t *testing.T) {
	err := NewServiceUnavailable("stripe webhook")
	if err.Status != http.StatusServiceUnavailable || err.Code != ErrorCodeServiceUnavailable {
		t.Fatalf("unexpected error: %+v", err)
	}
	if err.Details["feature"] != "stripe webhook" {
		t.Fatalf("unexpected details: %v", err.Details)
	}
}
