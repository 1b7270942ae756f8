package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// DefaultFreeLimit 는 무료 사용 기본 한도다.
const DefaultFreeLimit int64 = 5

// SubscriptionChecker 는 호출자가 유료 구독 중인지 확인한다.
type SubscriptionChecker interface {
	IsActive(ctx context.Context, callerID string) (bool, error)
}

// Status 는 호출자 사용량 요약이다.
type Status struct {
	Count     int64 `json:"count"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Pro       bool  `json:"pro"`
}

// Gate 는 호출자별 무료 사용 한도를 판정하고 카운트를 올린다.
type Gate struct {
	store         Store
	limit         int64
	subscriptions SubscriptionChecker
	logger        *slog.Logger
}

// NewGate 는 사용량 게이트를 생성한다. subscriptions 는 nil 일 수 있다.
func NewGate(store Store, limit int64, subscriptions SubscriptionChecker, logger *slog.Logger) (*Gate, error) {
	if store == nil {
		return nil, errors.New("quota store is nil")
	}
	if limit <= 0 {
		limit = DefaultFreeLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		store:         store,
		limit:         limit,
		subscriptions: subscriptions,
		logger:        logger,
	}, nil
}

// Limit 은 무료 사용 한도를 반환한다.
func (g *Gate) Limit() int64 {
	return g.limit
}

// CheckQuota 는 레코드가 없거나 카운트가 한도 미만이면 true 를 반환한다. 저장소를 바꾸지 않는다.
func (g *Gate) CheckQuota(ctx context.Context, callerID string) (bool, error) {
	if err := validateCaller(callerID); err != nil {
		return false, err
	}
	count, exists, err := g.store.Get(ctx, callerID)
	if err != nil {
		return false, fmt.Errorf("check quota: %w", err)
	}
	if !exists {
		return true, nil
	}
	return count < g.limit, nil
}

// RecordUsage 는 카운트를 무조건 1 올린다. 레코드가 없으면 1로 만든다.
func (g *Gate) RecordUsage(ctx context.Context, callerID string) error {
	if err := validateCaller(callerID); err != nil {
		return err
	}
	if _, err := g.store.Increment(ctx, callerID); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Reserve 는 한도 확인과 증가를 한 번에 수행한다.
// 한도에 도달했으면 ErrQuotaExceeded 를 반환한다. 구독자는 카운트 없이 통과한다.
func (g *Gate) Reserve(ctx context.Context, callerID string) (*Reservation, error) {
	if err := validateCaller(callerID); err != nil {
		return nil, err
	}

	if g.isPro(ctx, callerID) {
		return &Reservation{ID: uuid.NewString(), CallerID: callerID, Pro: true}, nil
	}

	count, ok, err := g.store.IncrementBelow(ctx, callerID, g.limit)
	if err != nil {
		return nil, fmt.Errorf("reserve quota: %w", err)
	}
	if !ok {
		return nil, ErrQuotaExceeded
	}

	reservation := &Reservation{
		ID:       uuid.NewString(),
		CallerID: callerID,
		Count:    count,
		gate:     g,
	}
	g.logger.DebugContext(ctx, "quota_reserved",
		"reservation_id", reservation.ID,
		"caller_id", callerID,
		"count", count,
		"limit", g.limit,
	)
	return reservation, nil
}

// Status 는 호출자의 현재 사용량 요약을 반환한다.
func (g *Gate) Status(ctx context.Context, callerID string) (Status, error) {
	if err := validateCaller(callerID); err != nil {
		return Status{}, err
	}
	count, _, err := g.store.Get(ctx, callerID)
	if err != nil {
		return Status{}, fmt.Errorf("quota status: %w", err)
	}
	return Status{
		Count:     count,
		Limit:     g.limit,
		Remaining: max(0, g.limit-count),
		Pro:       g.isPro(ctx, callerID),
	}, nil
}

// Reset 은 호출자 카운트를 지운다. 관리자 경로에서만 사용한다.
func (g *Gate) Reset(ctx context.Context, callerID string) error {
	if err := validateCaller(callerID); err != nil {
		return err
	}
	if err := g.store.Reset(ctx, callerID); err != nil {
		return fmt.Errorf("reset quota: %w", err)
	}
	g.logger.InfoContext(ctx, "quota_reset", "caller_id", callerID)
	return nil
}

// Ping 은 저장소 연결을 확인한다.
func (g *Gate) Ping(ctx context.Context) error {
	return g.store.Ping(ctx)
}

func (g *Gate) isPro(ctx context.Context, callerID string) bool {
	if g.subscriptions == nil {
		return false
	}
	active, err := g.subscriptions.IsActive(ctx, callerID)
	if err != nil {
		g.logger.WarnContext(ctx, "subscription_lookup_failed", "caller_id", callerID, "err", err)
		return false
	}
	return active
}

func validateCaller(callerID string) error {
	if strings.TrimSpace(callerID) == "" {
		return ErrInvalidCaller
	}
	return nil
}

// Reservation 은 Reserve 로 선점한 사용량 1건이다.
// 제공자 호출이 성공하면 Commit, 실패하면 Rollback 한다.
type Reservation struct {
	ID       string
	CallerID string
	Count    int64
	Pro      bool

	gate *Gate
	once sync.Once
}

// Commit 은 선점을 확정한다. 저장소 쓰기는 없다.
func (r *Reservation) Commit(context.Context) {
	if r == nil {
		return
	}
	r.once.Do(func() {})
}

// Rollback 은 선점한 카운트를 되돌린다. Commit 후에는 아무 것도 하지 않는다.
func (r *Reservation) Rollback(ctx context.Context) error {
	if r == nil || r.Pro || r.gate == nil {
		return nil
	}
	var err error
	r.once.Do(func() {
		count, decErr := r.gate.store.Decrement(ctx, r.CallerID)
		if decErr != nil {
			err = fmt.Errorf("rollback quota: %w", decErr)
			return
		}
		r.gate.logger.DebugContext(ctx, "quota_rolled_back",
			"reservation_id", r.ID,
			"caller_id", r.CallerID,
			"count", count,
		)
	})
	return err
}
