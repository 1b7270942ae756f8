package shared

import (
	"context"
	"log/slog"
)

// LogError: 에러를 경고 레벨로 로깅합니다.
func LogError(ctx context.Context, logger *slog.Logger, domain string, err error, args ...any) {
	if logger == nil || err == nil {
		return
	}
	logger.WarnContext(ctx, domain+"_error", append([]any{"err", err}, args...)...)
}
