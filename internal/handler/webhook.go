package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler/shared"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/subscription"
)

// StripeSignatureHeader 는 Stripe 웹훅 서명 헤더다.
const StripeSignatureHeader = "Stripe-Signature"

// WebhookHandler: Stripe 구독 웹훅 핸들러입니다.
type WebhookHandler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

// NewWebhookHandler: 웹훅 핸들러를 생성합니다. processor 가 nil 이면 503을 반환합니다.
func NewWebhookHandler(processor WebhookProcessor, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{processor: processor, logger: logger}
}

// RegisterRoutes: 웹훅 라우트를 등록합니다.
func (h *WebhookHandler) RegisterRoutes(router gin.IRouter) {
	router.POST("/api/webhook/stripe", h.handleStripe)
}

func (h *WebhookHandler) handleStripe(c *gin.Context) {
	if h.processor == nil {
		writeError(c, httperror.NewServiceUnavailable("stripe webhook"))
		return
	}

	payload, ok := shared.ReadRaw(c)
	if !ok {
		return
	}
	signature := c.GetHeader(StripeSignatureHeader)
	if signature == "" {
		writeError(c, httperror.NewMissingField(StripeSignatureHeader))
		return
	}

	result, err := h.processor.Process(c.Request.Context(), payload, signature)
	if err != nil {
		if errors.Is(err, subscription.ErrInvalidSignature) {
			writeError(c, httperror.NewInvalidInput("invalid webhook signature"))
			return
		}
		shared.LogError(c.Request.Context(), h.logger, "stripe_webhook", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
