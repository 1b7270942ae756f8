package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
)

// 생성 기능 이름입니다. 메트릭 라벨과 일자별 통계 키로 쓰인다.
const (
	CapabilityCode         = "code"
	CapabilityConversation = "conversation"
	CapabilityImage        = "image"
	CapabilityMusic        = "music"
	CapabilityVideo        = "video"
)

// pipeline 은 생성 기능 하나의 입력 파싱과 제공자 호출을 묶는다.
type pipeline[Req any, Resp any] struct {
	capability string
	parse      func(body map[string]any) (Req, error)
	call       func(ctx context.Context, req Req) (Resp, llm.Usage, error)
}

// runtime 은 모든 생성 기능이 공유하는 협력자다.
type runtime struct {
	gate     Gate
	metrics  *metrics.Store
	recorder UsageRecorder
	logger   *slog.Logger
}

// serve 는 호출자 확인, 입력 검증, 사용량 선점, 제공자 호출, 사용량 확정 순서로 요청을 처리한다.
// 제공자 호출이 실패하면 선점한 사용량을 되돌린다.
func serve[Req any, Resp any](rt *runtime, p pipeline[Req, Resp]) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		callerID, ok := middleware.GetCallerID(c)
		if !ok {
			writeError(c, httperror.NewUnauthenticated())
			return
		}

		body, ok := readObject(c)
		if !ok {
			return
		}
		req, err := p.parse(body)
		if err != nil {
			writeError(c, err)
			return
		}

		reservation, err := rt.gate.Reserve(ctx, callerID)
		if err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				rt.metrics.RecordQuotaDenied(p.capability)
				rt.logger.InfoContext(ctx, "quota_denied", "capability", p.capability, "caller_id", callerID)
			} else {
				rt.logger.ErrorContext(ctx, "quota_reserve_failed", "capability", p.capability, "caller_id", callerID, "err", err)
			}
			writeError(c, err)
			return
		}

		start := time.Now()
		resp, usage, err := p.call(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			if rbErr := reservation.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				rt.logger.ErrorContext(ctx, "quota_rollback_failed",
					"capability", p.capability,
					"reservation_id", reservation.ID,
					"err", rbErr,
				)
			}
			rt.metrics.RecordError(p.capability, elapsed, outcomeOf(err))
			rt.logger.WarnContext(ctx, "generation_failed",
				"capability", p.capability,
				"caller_id", callerID,
				"duration_ms", elapsed.Milliseconds(),
				"err", err,
			)
			writeError(c, err)
			return
		}

		reservation.Commit(ctx)
		rt.metrics.RecordSuccess(p.capability, elapsed, usage)
		if rt.recorder != nil {
			rt.recorder.Record(context.WithoutCancel(ctx), p.capability, usage)
		}

		c.JSON(http.StatusOK, resp)
	}
}

func outcomeOf(err error) string {
	var providerErr *llm.ProviderError
	if errors.As(err, &providerErr) {
		switch {
		case providerErr.RateLimited():
			return metrics.OutcomeRateLimited
		case providerErr.TimedOut():
			return metrics.OutcomeTimeout
		}
	}
	if llm.IsTimeout(err) {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
