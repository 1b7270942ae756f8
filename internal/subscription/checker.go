package subscription

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/cache"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

// Lookup 은 호출자 구독 조회 인터페이스다.
type Lookup interface {
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
}

// Checker 는 구독 활성 여부를 짧게 캐시해 판정한다.
type Checker struct {
	lookup Lookup
	grace  time.Duration
	cache  *cache.TTLCache[string, bool]
	group  singleflight.Group
	now    func() time.Time
}

// NewChecker 는 구독 판정기를 생성한다.
func NewChecker(lookup Lookup, cfg config.StripeConfig) *Checker {
	return &Checker{
		lookup: lookup,
		grace:  time.Duration(cfg.SubscriptionGraceHours) * time.Hour,
		cache: cache.NewTTLCache[string, bool](
			cfg.SubscriptionCacheSize,
			time.Duration(cfg.SubscriptionCacheTTL)*time.Second,
		),
		now: time.Now,
	}
}

// IsActive 는 호출자가 활성 구독 중인지 반환한다.
func (c *Checker) IsActive(ctx context.Context, userID string) (bool, error) {
	if c == nil || c.lookup == nil {
		return false, nil
	}
	if active, ok := c.cache.Get(userID); ok {
		return active, nil
	}

	value, err, _ := c.group.Do(userID, func() (any, error) {
		sub, err := c.lookup.GetByUser(ctx, userID)
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return sub.ActiveAt(c.now(), c.grace), nil
	})
	if err != nil {
		return false, err
	}

	active := value.(bool)
	c.cache.Set(userID, active)
	return active, nil
}

// Invalidate 는 호출자 캐시 항목을 지운다. 웹훅으로 상태가 바뀌면 호출한다.
func (c *Checker) Invalidate(userID string) {
	if c == nil {
		return
	}
	c.cache.Delete(userID)
}
