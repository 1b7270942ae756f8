package quota

import "context"

// Store 는 호출자별 사용량 카운터 저장소다.
// 모든 구현은 IncrementBelow 를 원자적으로 수행해야 한다.
type Store interface {
	// Get 은 현재 카운트와 레코드 존재 여부를 반환한다.
	Get(ctx context.Context, callerID string) (int64, bool, error)
	// Increment 는 카운트를 1 올린다. 레코드가 없으면 1로 만든다.
	Increment(ctx context.Context, callerID string) (int64, error)
	// IncrementBelow 는 카운트가 limit 미만일 때만 1 올린다.
	IncrementBelow(ctx context.Context, callerID string, limit int64) (int64, bool, error)
	// Decrement 는 카운트를 1 내린다. 0 아래로는 내려가지 않는다.
	Decrement(ctx context.Context, callerID string) (int64, error)
	// Reset 은 호출자 레코드를 지운다.
	Reset(ctx context.Context, callerID string) error
	// Ping 은 저장소 연결 상태를 확인한다.
	Ping(ctx context.Context) error
	// Close 는 리소스를 정리한다.
	Close()
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*ValkeyStore)(nil)
	_ Store = (*GormStore)(nil)
)
