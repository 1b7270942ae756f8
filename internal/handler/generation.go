package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler/shared"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/openai"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/prompt"
)

// 이미지 요청 기본값입니다.
const (
	DefaultImageAmount     = 1
	DefaultImageResolution = "512x512"
)

// ChatRequest 는 code/conversation 요청 본문이다.
type ChatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// PromptRequest 는 music/video 요청 본문이다.
type PromptRequest struct {
	Prompt string `json:"prompt"`
}

type imageInput struct {
	Prompt     string  `json:"prompt"`
	Amount     *int    `json:"amount"`
	Resolution *string `json:"resolution"`
}

// CodeInstruction 은 code 기능 대화 앞에 붙는 시스템 지시문이다.
type CodeInstruction string

// GenerationHandler 는 다섯 가지 생성 기능 라우트를 담당한다.
type GenerationHandler struct {
	rt         *runtime
	chat       llm.ChatCompleter
	images     ImageGenerator
	media      MediaGenerator
	codeSystem string
}

// NewGenerationHandler 는 생성 핸들러를 만든다.
func NewGenerationHandler(
	gate Gate,
	chat llm.ChatCompleter,
	images ImageGenerator,
	media MediaGenerator,
	codeSystem CodeInstruction,
	metricsStore *metrics.Store,
	recorder UsageRecorder,
	logger *slog.Logger,
) (*GenerationHandler, error) {
	if gate == nil {
		return nil, errors.New("usage gate is nil")
	}
	if chat == nil || images == nil || media == nil {
		return nil, errors.New("provider adapter is nil")
	}
	if strings.TrimSpace(string(codeSystem)) == "" {
		return nil, errors.New("code system instruction is empty")
	}
	if metricsStore == nil {
		metricsStore = metrics.NewStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GenerationHandler{
		rt: &runtime{
			gate:     gate,
			metrics:  metricsStore,
			recorder: recorder,
			logger:   logger,
		},
		chat:       chat,
		images:     images,
		media:      media,
		codeSystem: string(codeSystem),
	}, nil
}

// RegisterRoutes 는 생성 라우트를 등록한다.
func (h *GenerationHandler) RegisterRoutes(router gin.IRouter) {
	group := router.Group("/api")
	group.POST("/code", serve(h.rt, pipeline[ChatRequest, llm.Message]{
		capability: CapabilityCode,
		parse:      parseChat,
		call:       h.completeCode,
	}))
	group.POST("/conversation", serve(h.rt, pipeline[ChatRequest, llm.Message]{
		capability: CapabilityConversation,
		parse:      parseChat,
		call:       h.completeConversation,
	}))
	group.POST("/image", serve(h.rt, pipeline[openai.ImageRequest, []llm.Image]{
		capability: CapabilityImage,
		parse:      parseImage,
		call:       h.generateImages,
	}))
	group.POST("/music", serve(h.rt, pipeline[PromptRequest, any]{
		capability: CapabilityMusic,
		parse:      parsePrompt,
		call:       h.generateMusic,
	}))
	group.POST("/video", serve(h.rt, pipeline[PromptRequest, any]{
		capability: CapabilityVideo,
		parse:      parsePrompt,
		call:       h.generateVideo,
	}))
}

func (h *GenerationHandler) completeCode(ctx context.Context, req ChatRequest) (llm.Message, llm.Usage, error) {
	return h.complete(ctx, prompt.Prepend(h.codeSystem, req.Messages))
}

func (h *GenerationHandler) completeConversation(ctx context.Context, req ChatRequest) (llm.Message, llm.Usage, error) {
	return h.complete(ctx, req.Messages)
}

func (h *GenerationHandler) complete(ctx context.Context, messages []llm.Message) (llm.Message, llm.Usage, error) {
	result, err := h.chat.Complete(ctx, messages)
	if err != nil {
		return llm.Message{}, llm.Usage{}, err
	}
	return result.Message, result.Usage, nil
}

func (h *GenerationHandler) generateImages(ctx context.Context, req openai.ImageRequest) ([]llm.Image, llm.Usage, error) {
	images, err := h.images.GenerateImages(ctx, req)
	return images, llm.Usage{}, err
}

func (h *GenerationHandler) generateMusic(ctx context.Context, req PromptRequest) (any, llm.Usage, error) {
	output, err := h.media.GenerateMusic(ctx, req.Prompt)
	return output, llm.Usage{}, err
}

func (h *GenerationHandler) generateVideo(ctx context.Context, req PromptRequest) (any, llm.Usage, error) {
	output, err := h.media.GenerateVideo(ctx, req.Prompt)
	return output, llm.Usage{}, err
}

func parseChat(body map[string]any) (ChatRequest, error) {
	if isAbsent(body, "messages") {
		return ChatRequest{}, httperror.NewMissingField("messages")
	}
	var req ChatRequest
	if err := shared.Decode(body, &req); err != nil {
		return ChatRequest{}, httperror.NewInvalidInput(fmt.Sprintf("invalid messages: %v", err))
	}
	if len(req.Messages) == 0 {
		return ChatRequest{}, httperror.NewMissingField("messages")
	}
	return req, nil
}

func parsePrompt(body map[string]any) (PromptRequest, error) {
	text, err := requirePrompt(body)
	if err != nil {
		return PromptRequest{}, err
	}
	return PromptRequest{Prompt: text}, nil
}

func parseImage(body map[string]any) (openai.ImageRequest, error) {
	if _, err := requirePrompt(body); err != nil {
		return openai.ImageRequest{}, err
	}
	var input imageInput
	if err := shared.Decode(body, &input); err != nil {
		return openai.ImageRequest{}, httperror.NewInvalidInput(fmt.Sprintf("invalid image request: %v", err))
	}

	req := openai.ImageRequest{
		Prompt:     input.Prompt,
		Amount:     DefaultImageAmount,
		Resolution: DefaultImageResolution,
	}
	if input.Amount != nil {
		if *input.Amount <= 0 {
			return openai.ImageRequest{}, httperror.NewInvalidInput("amount must be a positive integer")
		}
		req.Amount = *input.Amount
	}
	if input.Resolution != nil {
		resolution := strings.TrimSpace(*input.Resolution)
		if resolution == "" {
			return openai.ImageRequest{}, httperror.NewInvalidInput("resolution must not be empty")
		}
		req.Resolution = resolution
	}
	return req, nil
}

func requirePrompt(body map[string]any) (string, error) {
	if isAbsent(body, "prompt") {
		return "", httperror.NewMissingField("prompt")
	}
	text, ok := body["prompt"].(string)
	if !ok {
		return "", httperror.NewInvalidInput("prompt must be a string")
	}
	if strings.TrimSpace(text) == "" {
		return "", httperror.NewMissingField("prompt")
	}
	return text, nil
}

func isAbsent(body map[string]any, field string) bool {
	value, ok := body[field]
	return !ok || value == nil
}
