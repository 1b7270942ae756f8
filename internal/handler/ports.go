package handler

import (
	"context"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/openai"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/replicate"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/subscription"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

// Gate 는 호출자별 사용량 게이트다.
type Gate interface {
	Reserve(ctx context.Context, callerID string) (*quota.Reservation, error)
	Status(ctx context.Context, callerID string) (quota.Status, error)
	Reset(ctx context.Context, callerID string) error
}

// ImageGenerator 는 이미지 생성 제공자다.
type ImageGenerator interface {
	GenerateImages(ctx context.Context, req openai.ImageRequest) ([]llm.Image, error)
}

// MediaGenerator 는 음악/영상 생성 제공자다.
type MediaGenerator interface {
	GenerateMusic(ctx context.Context, prompt string) (any, error)
	GenerateVideo(ctx context.Context, prompt string) (any, error)
}

// UsageRecorder 는 성공한 생성 요청의 일자별 통계를 남긴다.
type UsageRecorder interface {
	Record(ctx context.Context, capability string, usage llm.Usage)
}

// WebhookProcessor 는 Stripe 웹훅 처리기다.
type WebhookProcessor interface {
	Process(ctx context.Context, payload []byte, signature string) (*subscription.WebhookResult, error)
}

var (
	_ Gate             = (*quota.Gate)(nil)
	_ UsageRecorder    = (*usage.Recorder)(nil)
	_ WebhookProcessor = (*subscription.WebhookProcessor)(nil)
	_ ImageGenerator   = (*openai.Client)(nil)
	_ MediaGenerator   = (*replicate.Client)(nil)
)
