package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

// ImageRequest 는 이미지 생성 요청 데이터다.
type ImageRequest struct {
	Prompt     string
	Amount     int
	Resolution string
}

// Client 는 OpenAI 채팅/이미지 호출을 담당한다.
type Client struct {
	cfg config.OpenAIConfig
	api *goopenai.Client
}

// NewClient 는 OpenAI 클라이언트를 생성한다. API 키가 없으면 호출 시점에 실패한다.
func NewClient(cfg config.OpenAIConfig) *Client {
	client := &Client{cfg: cfg}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return client
	}

	apiCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = cfg.BaseURL
	}
	if cfg.TimeoutSeconds > 0 {
		apiCfg.HTTPClient = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	client.api = goopenai.NewClientWithConfig(apiCfg)
	return client
}

// Configured 는 API 키가 설정되었는지 확인한다.
func (c *Client) Configured() bool {
	return c != nil && c.api != nil
}

// Complete 는 채팅 완성을 요청하고 첫 번째 메시지를 반환한다.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (llm.ChatResult, error) {
	if !c.Configured() {
		return llm.ChatResult{}, llm.NewProviderError(llm.ProviderOpenAI, 0, llm.ErrMissingCredentials)
	}

	req := goopenai.ChatCompletionRequest{
		Model:    c.cfg.ChatModel,
		Messages: toChatMessages(messages),
	}
	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return llm.ChatResult{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return llm.ChatResult{}, llm.NewProviderError(llm.ProviderOpenAI, 0, llm.ErrEmptyResponse)
	}

	first := resp.Choices[0].Message
	return llm.ChatResult{
		Message: llm.Message{Role: first.Role, Content: first.Content},
		Usage: llm.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// GenerateImages 는 프롬프트로 이미지를 생성한다.
func (c *Client) GenerateImages(ctx context.Context, req ImageRequest) ([]llm.Image, error) {
	if !c.Configured() {
		return nil, llm.NewProviderError(llm.ProviderOpenAI, 0, llm.ErrMissingCredentials)
	}

	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         req.Prompt,
		Model:          c.cfg.ImageModel,
		N:              req.Amount,
		Size:           req.Resolution,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return nil, classify(err)
	}

	images := make([]llm.Image, 0, len(resp.Data))
	for _, item := range resp.Data {
		images = append(images, llm.Image{
			URL:           item.URL,
			B64JSON:       item.B64JSON,
			RevisedPrompt: item.RevisedPrompt,
		})
	}
	return images, nil
}

func toChatMessages(messages []llm.Message) []goopenai.ChatCompletionMessage {
	out := make([]goopenai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role == "" {
			role = llm.RoleUser
		}
		out = append(out, goopenai.ChatCompletionMessage{Role: role, Content: msg.Content})
	}
	return out
}

// classify 는 go-openai 오류에서 HTTP 상태를 꺼내 ProviderError 로 감싼다.
func classify(err error) error {
	status := 0

	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	case llm.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}
	return llm.NewProviderError(llm.ProviderOpenAI, status, err)
}

var _ llm.ChatCompleter = (*Client)(nil)
