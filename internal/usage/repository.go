package usage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
)

const (
	defaultRecentDays = 7
	defaultTotalDays  = 30
)

// ErrEmptyCapability 는 기능 이름 없이 기록을 시도할 때 반환된다.
var ErrEmptyCapability = errors.New("capability is empty")

// Repository 는 usage DB 접근을 담당한다.
type Repository struct {
	db  storage.Provider
	now func() time.Time
}

// NewRepository 는 usage 저장소를 생성한다. 스키마는 첫 사용 시 준비된다.
func NewRepository(db storage.Provider) *Repository {
	return &Repository{
		db:  storage.NewMigrated(db, &GenerationUsage{}),
		now: time.Now,
	}
}

// RecordUsage 는 지정한 날짜(또는 오늘)의 기능별 사용량을 누적 저장한다.
func (r *Repository) RecordUsage(ctx context.Context, capability string, delta Delta, usageDate time.Time) error {
	capability = strings.TrimSpace(capability)
	if capability == "" {
		return ErrEmptyCapability
	}
	if delta.empty() {
		return nil
	}

	db, err := r.db.DB(ctx)
	if err != nil {
		return err
	}

	targetDate := usageDate
	if targetDate.IsZero() {
		targetDate = r.today()
	}

	row := GenerationUsage{
		UsageDate:       dateOf(targetDate),
		Capability:      capability,
		RequestCount:    delta.RequestCount,
		InputTokens:     delta.InputTokens,
		OutputTokens:    delta.OutputTokens,
		ReasoningTokens: delta.ReasoningTokens,
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "usage_date"}, {Name: "capability"}},
		DoUpdates: clause.Assignments(map[string]any{
			"request_count":    gorm.Expr("generation_usage.request_count + excluded.request_count"),
			"input_tokens":     gorm.Expr("generation_usage.input_tokens + excluded.input_tokens"),
			"output_tokens":    gorm.Expr("generation_usage.output_tokens + excluded.output_tokens"),
			"reasoning_tokens": gorm.Expr("generation_usage.reasoning_tokens + excluded.reasoning_tokens"),
			"version":          gorm.Expr("generation_usage.version + 1"),
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// GetDailyUsage 는 특정 날짜(또는 오늘)의 기능별 사용량을 조회한다.
func (r *Repository) GetDailyUsage(ctx context.Context, usageDate time.Time) ([]DailyUsage, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}

	targetDate := usageDate
	if targetDate.IsZero() {
		targetDate = r.today()
	}

	var rows []GenerationUsage
	if err := db.WithContext(ctx).
		Where("usage_date = ?", dateOf(targetDate)).
		Order("capability asc").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("get daily usage: %w", err)
	}

	usages := make([]DailyUsage, 0, len(rows))
	for _, row := range rows {
		usage := DailyUsage{UsageDate: row.UsageDate, Capability: row.Capability}
		usage.accumulate(row)
		usages = append(usages, usage)
	}
	return usages, nil
}

// GetRecentUsage 는 최근 N일의 일자별 합계를 최신순으로 조회한다.
func (r *Repository) GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error) {
	if days <= 0 {
		days = defaultRecentDays
	}
	rows, err := r.rowsSince(ctx, days)
	if err != nil {
		return nil, fmt.Errorf("get recent usage: %w", err)
	}

	byDate := make(map[int64]*DailyUsage)
	for _, row := range rows {
		date := dateOf(row.UsageDate)
		key := date.Unix()
		day := byDate[key]
		if day == nil {
			day = &DailyUsage{UsageDate: date}
			byDate[key] = day
		}
		day.accumulate(row)
	}

	usages := make([]DailyUsage, 0, len(byDate))
	for _, day := range byDate {
		usages = append(usages, *day)
	}
	sort.Slice(usages, func(i, j int) bool {
		return usages[i].UsageDate.After(usages[j].UsageDate)
	})
	return usages, nil
}

// GetTotalUsage 는 최근 N일 합계를 조회한다.
func (r *Repository) GetTotalUsage(ctx context.Context, days int) (DailyUsage, error) {
	if days <= 0 {
		days = defaultTotalDays
	}
	rows, err := r.rowsSince(ctx, days)
	if err != nil {
		return DailyUsage{}, fmt.Errorf("get total usage: %w", err)
	}

	total := DailyUsage{UsageDate: r.today()}
	for _, row := range rows {
		total.accumulate(row)
	}
	return total, nil
}

// rowsSince 는 오늘 포함 최근 days 일의 행을 반환한다.
func (r *Repository) rowsSince(ctx context.Context, days int) ([]GenerationUsage, error) {
	db, err := r.db.DB(ctx)
	if err != nil {
		return nil, err
	}
	cutoff := r.today().AddDate(0, 0, -(days - 1))

	var rows []GenerationUsage
	if err := db.WithContext(ctx).
		Where("usage_date >= ?", cutoff).
		Order("usage_date desc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) today() time.Time {
	return dateOf(r.now())
}
