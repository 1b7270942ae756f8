package subscription

import "time"

// Subscription 은 호출자별 Stripe 구독 상태 DB 모델이다.
type Subscription struct {
	ID                   int64     `gorm:"column:id;primaryKey"`
	UserID               string    `gorm:"column:user_id;size:191;not null;uniqueIndex"`
	StripeCustomerID     string    `gorm:"column:stripe_customer_id;size:191"`
	StripeSubscriptionID string    `gorm:"column:stripe_subscription_id;size:191;index"`
	StripePriceID        string    `gorm:"column:stripe_price_id;size:191"`
	Status               string    `gorm:"column:status;size:32"`
	CurrentPeriodEnd     time.Time `gorm:"column:stripe_current_period_end"`
	CreatedAt            time.Time `gorm:"column:created_at"`
	UpdatedAt            time.Time `gorm:"column:updated_at"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (Subscription) TableName() string {
	return "user_subscriptions"
}

// ActiveAt 은 가격이 지정되어 있고 기간 만료 + grace 가 now 이후인지 확인한다.
func (s Subscription) ActiveAt(now time.Time, grace time.Duration) bool {
	if s.StripePriceID == "" || s.CurrentPeriodEnd.IsZero() {
		return false
	}
	return s.CurrentPeriodEnd.Add(grace).After(now)
}
