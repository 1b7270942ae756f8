package quota

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"

	"github.com/valkey-io/valkey-go"
)

var (
	//go:embed lua/increment_below.lua
	incrementBelowLua string
	//go:embed lua/decrement_floor.lua
	decrementFloorLua string
)

// ValkeyStore 는 Valkey 키 하나에 호출자 카운트를 보관한다.
type ValkeyStore struct {
	client         valkey.Client
	prefix         string
	incrementBelow *valkey.Lua
	decrementFloor *valkey.Lua
}

// NewValkeyStore 는 Valkey 카운터 저장소를 생성한다.
func NewValkeyStore(client valkey.Client, prefix string) (*ValkeyStore, error) {
	if client == nil {
		return nil, errors.New("valkey client is nil")
	}
	return &ValkeyStore{
		client:         client,
		prefix:         prefix,
		incrementBelow: valkey.NewLuaScript(incrementBelowLua),
		decrementFloor: valkey.NewLuaScript(decrementFloorLua),
	}, nil
}

func (s *ValkeyStore) key(callerID string) string {
	return s.prefix + "api_limit:" + callerID
}

func (s *ValkeyStore) Get(ctx context.Context, callerID string) (int64, bool, error) {
	cmd := s.client.B().Get().Key(s.key(callerID)).Build()
	count, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("get usage count: %w", err)
	}
	return count, true, nil
}

func (s *ValkeyStore) Increment(ctx context.Context, callerID string) (int64, error) {
	cmd := s.client.B().Incr().Key(s.key(callerID)).Build()
	count, err := s.client.Do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("increment usage count: %w", err)
	}
	return count, nil
}

func (s *ValkeyStore) IncrementBelow(ctx context.Context, callerID string, limit int64) (int64, bool, error) {
	result := s.incrementBelow.Exec(ctx, s.client, []string{s.key(callerID)}, []string{strconv.FormatInt(limit, 10)})
	count, err := result.AsInt64()
	if err != nil {
		return 0, false, fmt.Errorf("reserve usage count: %w", err)
	}
	if count < 0 {
		return limit, false, nil
	}
	return count, true, nil
}

func (s *ValkeyStore) Decrement(ctx context.Context, callerID string) (int64, error) {
	result := s.decrementFloor.Exec(ctx, s.client, []string{s.key(callerID)}, nil)
	count, err := result.AsInt64()
	if err != nil {
		return 0, fmt.Errorf("release usage count: %w", err)
	}
	return count, nil
}

func (s *ValkeyStore) Reset(ctx context.Context, callerID string) error {
	cmd := s.client.B().Del().Key(s.key(callerID)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("reset usage count: %w", err)
	}
	return nil
}

func (s *ValkeyStore) Ping(ctx context.Context) error {
	return s.client.Do(ctx, s.client.B().Ping().Build()).Error()
}

func (s *ValkeyStore) Close() {
	s.client.Close()
}
