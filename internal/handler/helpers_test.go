package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/metrics"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/middleware"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/openai"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/quota"
)

const (
	callerHeader = "X-Test-Caller"
	testSystem   = "You are a code generator."
)

type headerResolver struct{}

func (headerResolver) ResolveCaller(req *http.Request) (string, bool) {
	id := req.Header.Get(callerHeader)
	return id, id != ""
}

type fakeChat struct {
	mu       sync.Mutex
	calls    int
	messages [][]llm.Message
	result   llm.ChatResult
	err      error
}

func (f *fakeChat) Complete(_ context.Context, messages []llm.Message) (llm.ChatResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, messages)
	if f.err != nil {
		return llm.ChatResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeImages struct {
	calls  int
	last   openai.ImageRequest
	images []llm.Image
	err    error
}

func (f *fakeImages) GenerateImages(_ context.Context, req openai.ImageRequest) ([]llm.Image, error) {
	f.calls++
	f.last = req
	return f.images, f.err
}

type fakeMedia struct {
	calls       int
	musicPrompt string
	videoPrompt string
	output      any
	err         error
}

func (f *fakeMedia) GenerateMusic(_ context.Context, prompt string) (any, error) {
	f.calls++
	f.musicPrompt = prompt
	return f.output, f.err
}

func (f *fakeMedia) GenerateVideo(_ context.Context, prompt string) (any, error) {
	f.calls++
	f.videoPrompt = prompt
	return f.output, f.err
}

type fakeRecorder struct {
	mu           sync.Mutex
	capabilities []string
	usages       []llm.Usage
}

func (f *fakeRecorder) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.capabilities)
}

func (f *fakeRecorder) Record(_ context.Context, capability string, usage llm.Usage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities = append(f.capabilities, capability)
	f.usages = append(f.usages, usage)
}

type staticSubscriptions map[string]bool

func (s staticSubscriptions) IsActive(_ context.Context, callerID string) (bool, error) {
	return s[callerID], nil
}

type fixture struct {
	t        *testing.T
	gate     *quota.Gate
	chat     *fakeChat
	images   *fakeImages
	media    *fakeMedia
	recorder *fakeRecorder
	metrics  *metrics.Store
	router   *gin.Engine
}

func newFixture(t *testing.T, limit int64, subscriptions quota.SubscriptionChecker) *fixture {
	t.Helper()
	return newFixtureWithStore(t, quota.NewMemoryStore(), limit, subscriptions)
}

func newFixtureWithStore(t *testing.T, store quota.Store, limit int64, subscriptions quota.SubscriptionChecker) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gate, err := quota.NewGate(store, limit, subscriptions, nil)
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}

	f := &fixture{
		t:    t,
		gate: gate,
		chat: &fakeChat{result: llm.ChatResult{
			Message: llm.Message{Role: llm.RoleAssistant, Content: "hello"},
			Usage:   llm.Usage{InputTokens: 3, OutputTokens: 5, TotalTokens: 8},
		}},
		images:   &fakeImages{images: []llm.Image{{URL: "https://img.example/1.png"}}},
		media:    &fakeMedia{output: "https://cdn.example/out.mp3"},
		recorder: &fakeRecorder{},
		metrics:  metrics.NewStore(),
	}

	generation, err := NewGenerationHandler(gate, f.chat, f.images, f.media, testSystem, f.metrics, f.recorder, nil)
	if err != nil {
		t.Fatalf("new generation handler: %v", err)
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ResolveCaller(headerResolver{}))
	generation.RegisterRoutes(router)
	NewUsageHandler(gate, nil, f.metrics, nil).RegisterRoutes(router)
	f.router = router
	return f
}

func (f *fixture) do(method string, path string, caller string, body string) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set(callerHeader, caller)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) providerCalls() int {
	return f.chat.callCount() + f.images.calls + f.media.calls
}

func (f *fixture) count(caller string) int64 {
	f.t.Helper()
	status, err := f.gate.Status(context.Background(), caller)
	if err != nil {
		f.t.Fatalf("status: %v", err)
	}
	return status.Count
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httperror.ErrorResponse {
	t.Helper()
	var payload httperror.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error response: %v (%s)", err, w.Body.String())
	}
	return payload
}
