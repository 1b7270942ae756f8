package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/handler/shared"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/usage"
)

const dateLayout = "2006-01-02"

// DailyUsageResponse: 일자·기능별 사용량 응답입니다.
type DailyUsageResponse struct {
	UsageDate       string `json:"usage_date"`
	Capability      string `json:"capability,omitempty"`
	InputTokens     int64  `json:"input_tokens"`
	OutputTokens    int64  `json:"output_tokens"`
	TotalTokens     int64  `json:"total_tokens"`
	ReasoningTokens int64  `json:"reasoning_tokens"`
	RequestCount    int64  `json:"request_count"`
}

// UsageListResponse: 사용량 목록 응답입니다.
type UsageListResponse struct {
	Usages            []DailyUsageResponse `json:"usages"`
	TotalInputTokens  int64                `json:"total_input_tokens"`
	TotalOutputTokens int64                `json:"total_output_tokens"`
	TotalTokens       int64                `json:"total_tokens"`
	TotalRequestCount int64                `json:"total_request_count"`
}

// TotalUsageResponse: 기간 합계 응답입니다.
type TotalUsageResponse struct {
	Days            int   `json:"days"`
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	TotalTokens     int64 `json:"total_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
	RequestCount    int64 `json:"request_count"`
}

// UsageHandler: 호출자 한도 조회와 관리자 사용량 API 핸들러입니다.
type UsageHandler struct {
	gate    Gate
	repo    usage.Store
	metrics *metrics.Store
	logger  *slog.Logger
}

// NewUsageHandler: 사용량 핸들러를 생성합니다. repo 가 nil 이면 통계 API는 503을 반환합니다.
func NewUsageHandler(gate Gate, repo usage.Store, metricsStore *metrics.Store, logger *slog.Logger) *UsageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UsageHandler{
		gate:    gate,
		repo:    repo,
		metrics: metricsStore,
		logger:  logger,
	}
}

// RegisterRoutes: 사용량 라우트를 등록합니다.
func (h *UsageHandler) RegisterRoutes(router gin.IRouter) {
	router.GET("/api/usage/limit", h.handleLimit)

	admin := router.Group("/api/admin")
	admin.GET("/usage/daily", h.handleDaily)
	admin.GET("/usage/recent", h.handleRecent)
	admin.GET("/usage/total", h.handleTotal)
	admin.DELETE("/limits/:caller_id", h.handleResetLimit)
	admin.GET("/metrics", h.handleMetrics)
}

func (h *UsageHandler) handleLimit(c *gin.Context) {
	callerID, ok := middleware.GetCallerID(c)
	if !ok {
		writeError(c, httperror.NewUnauthenticated())
		return
	}

	status, err := h.gate.Status(c.Request.Context(), callerID)
	if err != nil {
		shared.LogError(c.Request.Context(), h.logger, "usage_limit", err)
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *UsageHandler) handleResetLimit(c *gin.Context) {
	callerID := c.Param("caller_id")
	if err := h.gate.Reset(c.Request.Context(), callerID); err != nil {
		shared.LogError(c.Request.Context(), h.logger, "usage_reset", err, "caller_id", callerID)
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UsageHandler) handleDaily(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	date, ok := parseDate(c)
	if !ok {
		return
	}

	rows, err := h.repo.GetDailyUsage(c.Request.Context(), date)
	if err != nil {
		shared.LogError(c.Request.Context(), h.logger, "usage_daily", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildUsageListResponse(rows))
}

func (h *UsageHandler) handleRecent(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	days, ok := parseDays(c, 7)
	if !ok {
		return
	}

	rows, err := h.repo.GetRecentUsage(c.Request.Context(), days)
	if err != nil {
		shared.LogError(c.Request.Context(), h.logger, "usage_recent", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, buildUsageListResponse(rows))
}

func (h *UsageHandler) handleTotal(c *gin.Context) {
	if !h.requireRepo(c) {
		return
	}
	days, ok := parseDays(c, 30)
	if !ok {
		return
	}

	total, err := h.repo.GetTotalUsage(c.Request.Context(), days)
	if err != nil {
		shared.LogError(c.Request.Context(), h.logger, "usage_total", err)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, TotalUsageResponse{
		Days:            days,
		InputTokens:     total.InputTokens,
		OutputTokens:    total.OutputTokens,
		TotalTokens:     total.TotalTokens(),
		ReasoningTokens: total.ReasoningTokens,
		RequestCount:    total.RequestCount,
	})
}

func (h *UsageHandler) handleMetrics(c *gin.Context) {
	if h.metrics == nil {
		writeError(c, httperror.NewServiceUnavailable("metrics"))
		return
	}
	c.JSON(http.StatusOK, h.metrics.Snapshot())
}

func (h *UsageHandler) requireRepo(c *gin.Context) bool {
	if h.repo == nil {
		writeError(c, httperror.NewServiceUnavailable("usage statistics"))
		return false
	}
	return true
}

func toDailyUsageResponse(row usage.DailyUsage) DailyUsageResponse {
	return DailyUsageResponse{
		UsageDate:       row.UsageDate.Format(dateLayout),
		Capability:      row.Capability,
		InputTokens:     row.InputTokens,
		OutputTokens:    row.OutputTokens,
		TotalTokens:     row.TotalTokens(),
		ReasoningTokens: row.ReasoningTokens,
		RequestCount:    row.RequestCount,
	}
}

func buildUsageListResponse(rows []usage.DailyUsage) UsageListResponse {
	response := UsageListResponse{
		Usages: make([]DailyUsageResponse, 0, len(rows)),
	}

	for _, row := range rows {
		response.Usages = append(response.Usages, toDailyUsageResponse(row))
		response.TotalInputTokens += row.InputTokens
		response.TotalOutputTokens += row.OutputTokens
		response.TotalTokens += row.TotalTokens()
		response.TotalRequestCount += row.RequestCount
	}

	return response
}

func parseDays(c *gin.Context, defaultDays int) (int, bool) {
	raw := c.Query("days")
	if raw == "" {
		return defaultDays, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		writeError(c, httperror.NewInvalidInput("days must be a positive integer"))
		return 0, false
	}
	return parsed, true
}

// parseDate 는 date 쿼리(YYYY-MM-DD)를 읽는다. 없으면 zero time 이고 저장소가 오늘로 해석한다.
func parseDate(c *gin.Context) (time.Time, bool) {
	raw := c.Query("date")
	if raw == "" {
		return time.Time{}, true
	}
	parsed, err := time.ParseInLocation(dateLayout, raw, time.Local)
	if err != nil {
		writeError(c, httperror.NewInvalidInput("date must be in YYYY-MM-DD format"))
		return time.Time{}, false
	}
	return parsed, true
}
