package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"
)

// 처리하는 Stripe 이벤트 유형입니다.
const (
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// ErrInvalidSignature 는 Stripe 서명 검증에 실패했을 때 반환된다.
var ErrInvalidSignature = errors.New("invalid stripe signature")

// Writer 는 웹훅이 갱신하는 구독 저장소다.
type Writer interface {
	GetByStripeSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	Expire(ctx context.Context, userID string, status string, endedAt time.Time) error
}

// Invalidator 는 구독 판정 캐시를 비운다.
type Invalidator interface {
	Invalidate(userID string)
}

// WebhookResult 는 웹훅 처리 결과다.
type WebhookResult struct {
	EventID   string `json:"event_id"`
	EventType string `json:"event_type"`
	Processed bool   `json:"processed"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

// WebhookProcessor 는 Stripe 구독 이벤트를 user_subscriptions 에 반영한다.
type WebhookProcessor struct {
	secret      string
	writer      Writer
	invalidator Invalidator
	logger      *slog.Logger
}

// NewWebhookProcessor 는 웹훅 처리기를 생성한다. invalidator 는 nil 일 수 있다.
func NewWebhookProcessor(secret string, writer Writer, invalidator Invalidator, logger *slog.Logger) *WebhookProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookProcessor{
		secret:      secret,
		writer:      writer,
		invalidator: invalidator,
		logger:      logger,
	}
}

// Process 는 서명을 검증하고 이벤트를 반영한다.
func (p *WebhookProcessor) Process(ctx context.Context, payload []byte, signature string) (*WebhookResult, error) {
	event, err := webhook.ConstructEvent(payload, signature, p.secret)
	if err != nil {
		p.logger.WarnContext(ctx, "stripe_webhook_signature_invalid", "err", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &WebhookResult{
		EventID:   event.ID,
		EventType: event.Type,
		Processed: true,
	}

	switch event.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		result.UserID, err = p.applySubscription(ctx, event)
	case EventSubscriptionDeleted:
		result.UserID, err = p.expireSubscription(ctx, event)
	default:
		result.Processed = false
		result.Message = "event type not handled"
		p.logger.DebugContext(ctx, "stripe_webhook_ignored", "event_type", event.Type)
		return result, nil
	}
	if err != nil {
		p.logger.ErrorContext(ctx, "stripe_webhook_failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"err", err,
		)
		return nil, err
	}

	if result.UserID == "" {
		result.Processed = false
		result.Message = "subscription has no known user"
		p.logger.WarnContext(ctx, "stripe_webhook_unknown_user", "event_id", event.ID)
		return result, nil
	}
	if p.invalidator != nil {
		p.invalidator.Invalidate(result.UserID)
	}
	p.logger.InfoContext(ctx, "stripe_webhook_applied",
		"event_id", event.ID,
		"event_type", event.Type,
		"user_id", result.UserID,
	)
	return result, nil
}

func (p *WebhookProcessor) applySubscription(ctx context.Context, event stripe.Event) (string, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}
	userID, err := p.resolveUser(ctx, sub)
	if err != nil || userID == "" {
		return "", err
	}

	row := &Subscription{
		UserID:               userID,
		StripeSubscriptionID: sub.ID,
		StripePriceID:        priceID(sub),
		Status:               string(sub.Status),
		CurrentPeriodEnd:     time.Unix(sub.CurrentPeriodEnd, 0).UTC(),
		UpdatedAt:            time.Now().UTC(),
	}
	if sub.Customer != nil {
		row.StripeCustomerID = sub.Customer.ID
	}
	if err := p.writer.Upsert(ctx, row); err != nil {
		return "", err
	}
	return userID, nil
}

func (p *WebhookProcessor) expireSubscription(ctx context.Context, event stripe.Event) (string, error) {
	sub, err := decodeSubscription(event)
	if err != nil {
		return "", err
	}
	userID, err := p.resolveUser(ctx, sub)
	if err != nil || userID == "" {
		return "", err
	}

	endedAt := time.Now().UTC()
	if sub.EndedAt > 0 {
		endedAt = time.Unix(sub.EndedAt, 0).UTC()
	}
	err = p.writer.Expire(ctx, userID, string(sub.Status), endedAt)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (p *WebhookProcessor) resolveUser(ctx context.Context, sub *stripe.Subscription) (string, error) {
	for _, key := range []string{"userId", "user_id"} {
		if value := strings.TrimSpace(sub.Metadata[key]); value != "" {
			return value, nil
		}
	}
	existing, err := p.writer.GetByStripeSubscription(ctx, sub.ID)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return existing.UserID, nil
}

func decodeSubscription(event stripe.Event) (*stripe.Subscription, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("stripe event has no object")
	}
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return nil, fmt.Errorf("decode stripe subscription: %w", err)
	}
	if sub.ID == "" {
		return nil, errors.New("stripe subscription id is empty")
	}
	return &sub, nil
}

func priceID(sub *stripe.Subscription) string {
	if sub.Items == nil {
		return ""
	}
	for _, item := range sub.Items.Data {
		if item != nil && item.Price != nil && item.Price.ID != "" {
			return item.Price.ID
		}
	}
	return ""
}
