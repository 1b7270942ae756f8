package storage

import (
	"context"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// Migrated 는 Provider 위에서 모델 스키마를 한 번만 준비한다.
// 실패하면 다음 호출에서 다시 시도한다.
type Migrated struct {
	provider Provider
	models   []any

	mu    sync.Mutex
	ready bool
}

// NewMigrated 는 주어진 모델을 자동 마이그레이션하는 Provider 를 생성한다.
func NewMigrated(provider Provider, models ...any) *Migrated {
	return &Migrated{provider: provider, models: models}
}

// DB 는 스키마가 준비된 gorm 핸들을 반환한다.
func (m *Migrated) DB(ctx context.Context) (*gorm.DB, error) {
	if m == nil || m.provider == nil {
		return nil, fmt.Errorf("db provider is nil")
	}
	db, err := m.provider.DB(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return db, nil
	}
	if err := db.WithContext(ctx).AutoMigrate(m.models...); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}
	m.ready = true
	return db, nil
}
