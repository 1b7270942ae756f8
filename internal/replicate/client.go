package replicate

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/replicate/replicate-go"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

// 모델별 입력 필드 이름입니다.
const (
	musicPromptField = "prompt_a"
	videoPromptField = "prompt"
)

// Client 는 Replicate 예측 실행을 담당한다.
type Client struct {
	cfg config.ReplicateConfig
	api *replicate.Client
}

// NewClient 는 Replicate 클라이언트를 생성한다. 토큰이 없으면 호출 시점에 실패한다.
func NewClient(cfg config.ReplicateConfig) (*Client, error) {
	client := &Client{cfg: cfg}
	if strings.TrimSpace(cfg.APIToken) == "" {
		return client, nil
	}

	opts := []replicate.ClientOption{replicate.WithToken(cfg.APIToken)}
	if cfg.BaseURL != "" {
		opts = append(opts, replicate.WithBaseURL(cfg.BaseURL))
	}
	api, err := replicate.NewClient(opts...)
	if err != nil {
		return nil, llm.NewProviderError(llm.ProviderReplicate, 0, err)
	}
	client.api = api
	return client, nil
}

// Configured 는 API 토큰이 설정되었는지 확인한다.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

// GenerateMusic 은 음악 모델을 실행하고 제공자 출력을 그대로 반환한다.
func (c *Client) GenerateMusic(ctx context.Context, prompt string) (any, error) {
	return c.Run(ctx, c.cfg.MusicModel, replicate.PredictionInput{musicPromptField: prompt})
}

// GenerateVideo 는 영상 모델을 실행하고 제공자 출력을 그대로 반환한다.
func (c *Client) GenerateVideo(ctx context.Context, prompt string) (any, error) {
	return c.Run(ctx, c.cfg.VideoModel, replicate.PredictionInput{videoPromptField: prompt})
}

// Run 은 모델 식별자(owner/name:version)로 예측을 실행하고 완료까지 기다린다.
func (c *Client) Run(ctx context.Context, identifier string, input replicate.PredictionInput) (any, error) {
	if !c.Configured() {
		return nil, llm.NewProviderError(llm.ProviderReplicate, 0, llm.ErrMissingCredentials)
	}

	if c.cfg.TimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutSeconds)*time.Second)
		defer cancel()
	}

	output, err := c.api.Run(ctx, identifier, input, nil)
	if err != nil {
		return nil, classify(err)
	}
	if output == nil {
		return nil, llm.NewProviderError(llm.ProviderReplicate, 0, llm.ErrEmptyResponse)
	}
	return output, nil
}

func classify(err error) error {
	status := 0

	var apiErr *replicate.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Status
	case llm.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}
	return llm.NewProviderError(llm.ProviderReplicate, status, err)
}
