package quota

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/storage"
)

// NewStore 는 QUOTA_BACKEND 설정에 맞는 카운터 저장소를 생성한다.
func NewStore(cfg *config.Config, db storage.Provider, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	switch cfg.Quota.Backend {
	case config.QuotaBackendMemory:
		if logger != nil {
			logger.Warn("quota_memory_backend", "detail", "usage counts are lost on restart")
		}
		return NewMemoryStore(), nil
	case config.QuotaBackendValkey:
		client, err := storage.NewValkeyClient(cfg.Store)
		if err != nil {
			return nil, fmt.Errorf("quota valkey store: %w", err)
		}
		return NewValkeyStore(client, cfg.Quota.KeyPrefix)
	case config.QuotaBackendPostgres:
		if db == nil {
			return nil, errors.New("quota postgres store: db provider is nil")
		}
		return NewGormStore(db), nil
	default:
		return nil, fmt.Errorf("unsupported quota backend: %s", cfg.Quota.Backend)
	}
}
