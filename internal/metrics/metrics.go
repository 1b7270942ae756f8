package metrics

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

const namespace = "aigw"

// 호출 결과 라벨 값입니다.
const (
	OutcomeSuccess     = "success"
	OutcomeError       = "error"
	OutcomeRateLimited = "rate_limited"
	OutcomeTimeout     = "timeout"
)

// Store 는 생성 호출 통계를 저장한다.
// 누적 합계는 atomic 으로, 기능별 분포는 Prometheus 레지스트리로 노출한다.
type Store struct {
	totalCalls           int64
	totalErrors          int64
	totalQuotaDenied     int64
	totalInputTokens     int64
	totalOutputTokens    int64
	totalReasoningTokens int64
	totalDurationMs      int64

	registry     *prometheus.Registry
	requests     *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	tokens       *prometheus.CounterVec
	quotaDenials *prometheus.CounterVec
}

// NewStore 는 전용 레지스트리를 가진 통계 저장소를 생성한다.
func NewStore() *Store {
	s := &Store{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_requests_total",
			Help:      "Provider calls by capability and outcome.",
		}, []string{"capability", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Provider call latency by capability.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"capability"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_tokens_total",
			Help:      "Tokens reported by providers by capability and direction.",
		}, []string{"capability", "direction"}),
		quotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_denied_total",
			Help:      "Requests rejected by the free usage gate.",
		}, []string{"capability"}),
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		s.requests,
		s.duration,
		s.tokens,
		s.quotaDenials,
	)
	return s
}

// Handler 는 /metrics 노출용 HTTP 핸들러를 반환한다.
func (s *Store) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// RecordSuccess 는 성공 호출 통계를 기록한다.
func (s *Store) RecordSuccess(capability string, duration time.Duration, usage llm.Usage) {
	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalInputTokens, int64(usage.InputTokens))
	atomic.AddInt64(&s.totalOutputTokens, int64(usage.OutputTokens))
	atomic.AddInt64(&s.totalReasoningTokens, int64(usage.ReasoningTokens))
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())

	s.requests.WithLabelValues(capability, OutcomeSuccess).Inc()
	s.duration.WithLabelValues(capability).Observe(duration.Seconds())
	if usage.InputTokens > 0 {
		s.tokens.WithLabelValues(capability, "input").Add(float64(usage.InputTokens))
	}
	if usage.OutputTokens > 0 {
		s.tokens.WithLabelValues(capability, "output").Add(float64(usage.OutputTokens))
	}
}

// RecordError 는 실패 호출 통계를 기록한다.
func (s *Store) RecordError(capability string, duration time.Duration, outcome string) {
	if outcome == "" {
		outcome = OutcomeError
	}
	atomic.AddInt64(&s.totalCalls, 1)
	atomic.AddInt64(&s.totalErrors, 1)
	atomic.AddInt64(&s.totalDurationMs, duration.Milliseconds())

	s.requests.WithLabelValues(capability, outcome).Inc()
	s.duration.WithLabelValues(capability).Observe(duration.Seconds())
}

// RecordQuotaDenied 는 무료 한도 초과로 거절된 요청을 기록한다.
func (s *Store) RecordQuotaDenied(capability string) {
	atomic.AddInt64(&s.totalQuotaDenied, 1)
	s.quotaDenials.WithLabelValues(capability).Inc()
}

// UsageTotals 는 누적 사용량을 반환한다.
func (s *Store) UsageTotals() llm.Usage {
	input := atomic.LoadInt64(&s.totalInputTokens)
	output := atomic.LoadInt64(&s.totalOutputTokens)
	reasoning := atomic.LoadInt64(&s.totalReasoningTokens)
	return llm.Usage{
		InputTokens:     int(input),
		OutputTokens:    int(output),
		TotalTokens:     int(input + output),
		ReasoningTokens: int(reasoning),
	}
}

// Snapshot 는 통계 스냅샷을 반환한다.
func (s *Store) Snapshot() map[string]float64 {
	totalCalls := atomic.LoadInt64(&s.totalCalls)
	totalErrors := atomic.LoadInt64(&s.totalErrors)
	quotaDenied := atomic.LoadInt64(&s.totalQuotaDenied)
	input := atomic.LoadInt64(&s.totalInputTokens)
	output := atomic.LoadInt64(&s.totalOutputTokens)
	reasoning := atomic.LoadInt64(&s.totalReasoningTokens)
	durationMs := atomic.LoadInt64(&s.totalDurationMs)

	avgDuration := 0.0
	if totalCalls > 0 {
		avgDuration = float64(durationMs) / float64(totalCalls)
	}

	return map[string]float64{
		"total_calls":            float64(totalCalls),
		"total_errors":           float64(totalErrors),
		"total_quota_denied":     float64(quotaDenied),
		"total_input_tokens":     float64(input),
		"total_output_tokens":    float64(output),
		"total_reasoning_tokens": float64(reasoning),
		"total_tokens":           float64(input + output),
		"total_duration_ms":      float64(durationMs),
		"avg_duration_ms":        avgDuration,
	}
}
