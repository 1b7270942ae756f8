package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
)

// ErrNotFound 는 구독 레코드가 없을 때 반환된다.
var ErrNotFound = errors.New("subscription not found")

// Repository 는 user_subscriptions 테이블 접근을 담당한다.
type Repository struct {
	db storage.Provider
}

// NewRepository 는 구독 저장소를 생성한다. 스키마는 첫 사용 시 준비된다.
func NewRepository(db storage.Provider) *Repository {
	return &Repository{db: storage.NewMigrated(db, &Subscription{})}
}

// GetByUser 는 호출자 구독을 조회한다.
func (r *Repository) GetByUser(ctx context.Context, userID string) (*Subscription, error) {
	return r.first(ctx, "user_id = ?", userID)
}

// GetByStripeSubscription 은 Stripe 구독 ID 로 조회한다.
func (r *Repository) GetByStripeSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	return r.first(ctx, "stripe_subscription_id = ?", subscriptionID)
}

// Upsert 는 user_id 기준으로 구독 상태를 저장한다.
func (r *Repository) Upsert(ctx context.Context, sub *Subscription) error {
	if sub == nil || sub.UserID == "" {
		return errors.New("subscription user id is empty")
	}
	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}
	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"stripe_customer_id",
			"stripe_subscription_id",
			"stripe_price_id",
			"status",
			"stripe_current_period_end",
			"updated_at",
		}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Expire 는 구독을 종료 상태로 바꾼다.
func (r *Repository) Expire(ctx context.Context, userID string, status string, endedAt time.Time) error {
	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}
	result := db.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"stripe_price_id":           "",
			"status":                    status,
			"stripe_current_period_end": endedAt,
			"updated_at":                time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("expire subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) first(ctx context.Context, query string, arg string) (*Subscription, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	var row Subscription
	result := db.WithContext(ctx).Where(query, arg).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, fmt.Errorf("get subscription: %w", result.Error)
	}
	return &row, nil
}
