package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
)

// APILimit 는 호출자별 무료 사용 카운트 DB 모델이다.
type APILimit struct {
	ID        int64     `gorm:"column:id;primaryKey"`
	UserID    string    `gorm:"column:user_id;size:191;not null;uniqueIndex"`
	Count     int64     `gorm:"column:count;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// TableName 은 GORM에서 사용할 테이블명을 반환한다.
func (APILimit) TableName() string {
	return "user_api_limits"
}

const (
	upsertIncrementSQL = `
		INSERT INTO user_api_limits (user_id, count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET count = user_api_limits.count + 1, updated_at = excluded.updated_at
		RETURNING count`

	upsertIncrementBelowSQL = `
		INSERT INTO user_api_limits (user_id, count, created_at, updated_at)
		VALUES (?, 1, ?, ?)
		ON CONFLICT (user_id) DO UPDATE
		SET count = user_api_limits.count + 1, updated_at = excluded.updated_at
		WHERE user_api_limits.count < ?
		RETURNING count`
)

type countRow struct {
	Count int64
}

// GormStore 는 user_api_limits 테이블에 카운트를 보관한다.
type GormStore struct {
	db  storage.Provider
	now func() time.Time
}

// NewGormStore 는 SQL 카운터 저장소를 생성한다. 스키마는 첫 사용 시 준비된다.
func NewGormStore(db storage.Provider) *GormStore {
	return &GormStore{
		db:  storage.NewMigrated(db, &APILimit{}),
		now: time.Now,
	}
}

func (s *GormStore) Get(ctx context.Context, callerID string) (int64, bool, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return 0, false, err
	}
	var row APILimit
	result := db.WithContext(ctx).Where("user_id = ?", callerID).First(&row)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return 0, false, nil
	}
	if result.Error != nil {
		return 0, false, fmt.Errorf("get usage count: %w", result.Error)
	}
	return row.Count, true, nil
}

func (s *GormStore) Increment(ctx context.Context, callerID string) (int64, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now().UTC()
	var rows []countRow
	if err := db.WithContext(ctx).Raw(upsertIncrementSQL, callerID, now, now).Scan(&rows).Error; err != nil {
		return 0, fmt.Errorf("increment usage count: %w", err)
	}
	if len(rows) == 0 {
		return 0, errors.New("increment usage count: no row returned")
	}
	return rows[0].Count, nil
}

func (s *GormStore) IncrementBelow(ctx context.Context, callerID string, limit int64) (int64, bool, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return 0, false, err
	}
	now := s.now().UTC()
	var rows []countRow
	if err := db.WithContext(ctx).Raw(upsertIncrementBelowSQL, callerID, now, now, limit).Scan(&rows).Error; err != nil {
		return 0, false, fmt.Errorf("reserve usage count: %w", err)
	}
	// 충돌 행이 WHERE 를 통과하지 못하면 RETURNING 결과가 비어 있다.
	if len(rows) == 0 {
		return limit, false, nil
	}
	return rows[0].Count, true, nil
}

func (s *GormStore) Decrement(ctx context.Context, callerID string) (int64, error) {
	db, err := s.db.DB(ctx)
	if err != nil {
		return 0, err
	}
	result := db.WithContext(ctx).
		Model(&APILimit{}).
		Where("user_id = ? AND count > 0", callerID).
		Updates(map[string]any{
			"count":      gorm.Expr("count - 1"),
			"updated_at": s.now().UTC(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("release usage count: %w", result.Error)
	}
	count, _, err := s.Get(ctx, callerID)
	return count, err
}

func (s *GormStore) Reset(ctx context.Context, callerID string) error {
	db, err := s.db.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.WithContext(ctx).Where("user_id = ?", callerID).Delete(&APILimit{}).Error; err != nil {
		return fmt.Errorf("reset usage count: %w", err)
	}
	return nil
}

func (s *GormStore) Ping(ctx context.Context) error {
	db, err := s.db.DB(ctx)
	if err != nil {
		return err
	}
	return storage.Ping(ctx, db)
}

// Close 는 아무 것도 하지 않는다. 연결 수명은 storage.Postgres 가 관리한다.
func (s *GormStore) Close() {}
