package usage

import (
	"context"
	"time"
)

// Store: 사용량 저장소 인터페이스입니다.
// 테스트에서 mock 구현을 주입할 수 있도록 합니다.
type Store interface {
	// RecordUsage 기능별 사용량 누적
	RecordUsage(ctx context.Context, capability string, delta Delta, usageDate time.Time) error

	// GetDailyUsage 특정 날짜의 기능별 사용량 조회
	GetDailyUsage(ctx context.Context, usageDate time.Time) ([]DailyUsage, error)

	// GetRecentUsage 최근 N일 일자별 합계 조회
	GetRecentUsage(ctx context.Context, days int) ([]DailyUsage, error)

	// GetTotalUsage 최근 N일 합계 조회
	GetTotalUsage(ctx context.Context, days int) (DailyUsage, error)
}

// Repository가 Store 인터페이스를 구현하는지 컴파일 타임 확인
var _ Store = (*Repository)(nil)
