package quota

import (
	"context"
	"sync"
)

// MemoryStore 는 프로세스 메모리 카운터 저장소다. 단일 인스턴스 배포와 테스트용이다.
type MemoryStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryStore 는 빈 메모리 저장소를 생성한다.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: make(map[string]int64)}
}

func (s *MemoryStore) Get(_ context.Context, callerID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count, ok := s.counts[callerID]
	return count, ok, nil
}

func (s *MemoryStore) Increment(_ context.Context, callerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[callerID]++
	return s.counts[callerID], nil
}

func (s *MemoryStore) IncrementBelow(_ context.Context, callerID string, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := s.counts[callerID]
	if current >= limit {
		return current, false, nil
	}
	s.counts[callerID] = current + 1
	return current + 1, true, nil
}

func (s *MemoryStore) Decrement(_ context.Context, callerID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.counts[callerID]
	if !ok {
		return 0, nil
	}
	if current > 0 {
		current--
		s.counts[callerID] = current
	}
	return current, nil
}

func (s *MemoryStore) Reset(_ context.Context, callerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, callerID)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() {}
