package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

// Client 는 Gemini 채팅 호출을 담당한다. 여러 API 키를 순환 사용한다.
type Client struct {
	cfg       config.GeminiConfig
	baseURL   string
	mu        sync.Mutex
	clients   map[string]*genai.Client
	apiKeyIdx int
}

// NewClient 는 Gemini 클라이언트를 생성한다.
func NewClient(cfg config.GeminiConfig) *Client {
	return &Client{
		cfg:     cfg,
		clients: make(map[string]*genai.Client),
	}
}

// Configured 는 API 키가 하나 이상 있는지 확인한다.
func (c *Client) Configured() bool {
	return c != nil && len(c.cfg.APIKeys) > 0
}

// Complete 는 메시지 목록으로 응답을 생성하고 첫 번째 후보를 assistant 메시지로 반환한다.
func (c *Client) Complete(ctx context.Context, messages []llm.Message) (llm.ChatResult, error) {
	client, err := c.selectClient(ctx)
	if err != nil {
		return llm.ChatResult{}, err
	}

	system, contents := buildContents(messages)
	if len(contents) == 0 {
		return llm.ChatResult{}, llm.NewProviderError(llm.ProviderGemini, http.StatusBadRequest, errors.New("no user content"))
	}

	response, err := client.Models.GenerateContent(ctx, c.cfg.Model, contents, c.buildGenerateConfig(system))
	if err != nil {
		return llm.ChatResult{}, classify(err)
	}

	textParts, _ := extractParts(response)
	if len(textParts) == 0 {
		return llm.ChatResult{}, llm.NewProviderError(llm.ProviderGemini, 0, llm.ErrEmptyResponse)
	}

	return llm.ChatResult{
		Message: llm.Message{Role: llm.RoleAssistant, Content: strings.Join(textParts, "")},
		Usage:   extractUsage(response),
	}, nil
}

func (c *Client) selectClient(ctx context.Context) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cfg.APIKeys) == 0 {
		return nil, llm.NewProviderError(llm.ProviderGemini, 0, llm.ErrMissingCredentials)
	}

	key := c.cfg.APIKeys[c.apiKeyIdx%len(c.cfg.APIKeys)]
	c.apiKeyIdx++
	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	httpOptions := genai.HTTPOptions{BaseURL: c.baseURL}
	if c.cfg.TimeoutSeconds > 0 {
		httpOptions.Timeout = genai.Ptr(time.Duration(c.cfg.TimeoutSeconds) * time.Second)
	}
	client, err := genai.NewClient(context.WithoutCancel(ctx), &genai.ClientConfig{
		APIKey:      key,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: httpOptions,
	})
	if err != nil {
		return nil, llm.NewProviderError(llm.ProviderGemini, 0, fmt.Errorf("create genai client: %w", err))
	}

	c.clients[key] = client
	return client, nil
}

func (c *Client) buildGenerateConfig(systemPrompt string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if c.cfg.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(c.cfg.Temperature))
	}
	if c.cfg.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(c.cfg.MaxOutputTokens)
	}
	if systemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	return config
}

// buildContents 는 system 메시지를 시스템 지시문으로 모으고 나머지를 대화 내용으로 변환한다.
func buildContents(messages []llm.Message) (string, []*genai.Content) {
	systemParts := make([]string, 0)
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case llm.RoleSystem:
			systemParts = append(systemParts, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.Join(systemParts, "\n\n"), contents
}

func extractParts(response *genai.GenerateContentResponse) ([]string, []string) {
	if response == nil || len(response.Candidates) == 0 {
		return nil, nil
	}
	content := response.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return nil, nil
	}

	texts := make([]string, 0)
	thoughts := make([]string, 0)
	for _, part := range content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought {
			thoughts = append(thoughts, part.Text)
			continue
		}
		texts = append(texts, part.Text)
	}
	return texts, thoughts
}

func extractUsage(response *genai.GenerateContentResponse) llm.Usage {
	if response == nil || response.UsageMetadata == nil {
		return llm.Usage{}
	}
	usage := response.UsageMetadata
	return llm.Usage{
		InputTokens:     int(usage.PromptTokenCount),
		OutputTokens:    int(usage.CandidatesTokenCount) + int(usage.ThoughtsTokenCount),
		TotalTokens:     int(usage.TotalTokenCount),
		ReasoningTokens: int(usage.ThoughtsTokenCount),
	}
}

func classify(err error) error {
	status := 0

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.Code
	case errors.As(err, &apiErrPtr):
		status = apiErrPtr.Code
	case llm.IsTimeout(err):
		status = http.StatusGatewayTimeout
	}
	return llm.NewProviderError(llm.ProviderGemini, status, err)
}
