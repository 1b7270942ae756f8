package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/httperror"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

const chatBody = `{"messages":[{"role":"user","content":"hi"}]}`

func TestConversationReturnsFirstMessage(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/conversation", "u1", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var msg llm.Message
	if err := json.Unmarshal(w.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Role != llm.RoleAssistant || msg.Content != "hello" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if got := f.count("u1"); got != 1 {
		t.Fatalf("expected count 1, got %d", got)
	}
	if len(f.recorder.capabilities) != 1 || f.recorder.capabilities[0] != CapabilityConversation {
		t.Fatalf("unexpected recorded capabilities: %v", f.recorder.capabilities)
	}
	if f.recorder.usages[0].OutputTokens != 5 {
		t.Fatalf("expected usage to be recorded: %+v", f.recorder.usages[0])
	}
	if len(f.chat.messages[0]) != 1 {
		t.Fatalf("conversation must not add messages: %+v", f.chat.messages[0])
	}
}

func TestCodePrependsSystemInstruction(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/code", "u1", chatBody)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	sent := f.chat.messages[0]
	if len(sent) != 2 || sent[0].Role != llm.RoleSystem || sent[0].Content != testSystem {
		t.Fatalf("expected system instruction first, got %+v", sent)
	}
	if sent[1].Content != "hi" {
		t.Fatalf("expected user message preserved, got %+v", sent[1])
	}
}

func TestUnauthenticatedCallerRejected(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/conversation", "", chatBody)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	if f.chat.callCount() != 0 {
		t.Fatalf("provider must not be called")
	}
	if decodeError(t, w).ErrorCode != string(httperror.ErrorCodeUnauthenticated) {
		t.Fatalf("unexpected error code: %s", w.Body.String())
	}
}

func TestMissingFieldsDoNotConsumeQuota(t *testing.T) {
	f := newFixture(t, 5, nil)

	cases := []struct {
		path  string
		body  string
		field string
	}{
		{"/api/conversation", `{}`, "messages"},
		{"/api/code", `{"messages":[]}`, "messages"},
		{"/api/code", ``, "messages"},
		{"/api/image", `{"amount":1}`, "prompt"},
		{"/api/music", `{"prompt":null}`, "prompt"},
		{"/api/video", `{"prompt":"  "}`, "prompt"},
	}
	for _, tc := range cases {
		w := f.do(http.MethodPost, tc.path, "u1", tc.body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d", tc.path, tc.body, w.Code)
		}
		payload := decodeError(t, w)
		if payload.ErrorCode != string(httperror.ErrorCodeMissingField) || payload.Details["field"] != tc.field {
			t.Fatalf("%s %s: unexpected error %+v", tc.path, tc.body, payload)
		}
	}
	if got := f.count("u1"); got != 0 {
		t.Fatalf("expected no quota consumed, got %d", got)
	}
	if calls := f.providerCalls(); calls != 0 {
		t.Fatalf("expected no provider call, got %d", calls)
	}
	if f.recorder.recordCount() != 0 {
		t.Fatalf("expected no usage recorded")
	}
}

// unavailableStore 는 모든 카운터 연산이 실패하는 저장소다.
type unavailableStore struct{}

var errStoreDown = errors.New("dial tcp 10.0.0.9:6379: connection refused")

func (unavailableStore) Get(context.Context, string) (int64, bool, error) {
	return 0, false, errStoreDown
}

func (unavailableStore) Increment(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func (unavailableStore) IncrementBelow(context.Context, string, int64) (int64, bool, error) {
	return 0, false, errStoreDown
}

func (unavailableStore) Decrement(context.Context, string) (int64, error) {
	return 0, errStoreDown
}

func (unavailableStore) Reset(context.Context, string) error { return errStoreDown }

func (unavailableStore) Ping(context.Context) error { return errStoreDown }

func (unavailableStore) Close() {}

func TestCounterStoreFailureHidesDetail(t *testing.T) {
	f := newFixtureWithStore(t, unavailableStore{}, 5, nil)

	for _, path := range []string{"/api/conversation", "/api/music"} {
		body := chatBody
		if path == "/api/music" {
			body = `{"prompt":"lofi"}`
		}
		w := f.do(http.MethodPost, path, "u1", body)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500, got %d: %s", path, w.Code, w.Body.String())
		}
		payload := decodeError(t, w)
		if payload.ErrorCode != string(httperror.ErrorCodeInternal) || payload.Message != httperror.InternalErrorMessage {
			t.Fatalf("%s: unexpected error %+v", path, payload)
		}
		if strings.Contains(w.Body.String(), "dial tcp") {
			t.Fatalf("%s: store detail leaked: %s", path, w.Body.String())
		}
	}
	if calls := f.providerCalls(); calls != 0 {
		t.Fatalf("expected no provider call, got %d", calls)
	}
	if f.recorder.recordCount() != 0 {
		t.Fatalf("expected no usage recorded")
	}
}

func TestInvalidMessagesRejected(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/conversation", "u1", `{"messages":"hi"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if decodeError(t, w).ErrorCode != string(httperror.ErrorCodeInvalidInput) {
		t.Fatalf("unexpected error: %s", w.Body.String())
	}

	w = f.do(http.MethodPost, "/api/conversation", "u1", `{"messages":`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", w.Code)
	}
}

func TestQuotaExceeded(t *testing.T) {
	f := newFixture(t, 2, nil)

	for i := 0; i < 2; i++ {
		if w := f.do(http.MethodPost, "/api/conversation", "u1", chatBody); w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, w.Code)
		}
	}

	w := f.do(http.MethodPost, "/api/conversation", "u1", chatBody)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	payload := decodeError(t, w)
	if payload.Message != "Free trial has expired." {
		t.Fatalf("unexpected message: %s", payload.Message)
	}
	if f.chat.callCount() != 2 {
		t.Fatalf("provider must not be called after quota is exhausted, calls=%d", f.chat.callCount())
	}
	if got := f.count("u1"); got != 2 {
		t.Fatalf("denied request must not increment, got %d", got)
	}
	if f.metrics.Snapshot()["total_quota_denied"] != 1 {
		t.Fatalf("expected quota denial to be counted")
	}

	if w := f.do(http.MethodPost, "/api/conversation", "u2", chatBody); w.Code != http.StatusOK {
		t.Fatalf("other callers must be unaffected, got %d", w.Code)
	}
}

func TestProviderFailuresRollBack(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		status  int
		code    httperror.ErrorCode
		message string
	}{
		{
			name:    "rate limited",
			err:     llm.NewProviderError(llm.ProviderOpenAI, http.StatusTooManyRequests, errors.New("slow down")),
			status:  http.StatusTooManyRequests,
			code:    httperror.ErrorCodeUpstreamRateLimited,
			message: "OpenAI API quota exceeded. Please check your plan and billing details.",
		},
		{
			name:    "upstream error",
			err:     llm.NewProviderError(llm.ProviderOpenAI, http.StatusBadGateway, errors.New("bad gateway")),
			status:  http.StatusInternalServerError,
			code:    httperror.ErrorCodeUpstream,
			message: "Failed to fetch completion",
		},
		{
			name:   "timeout",
			err:    llm.NewProviderError(llm.ProviderOpenAI, 0, context.DeadlineExceeded),
			status: http.StatusGatewayTimeout,
			code:   httperror.ErrorCodeUpstreamTimeout,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5, nil)
			f.chat.err = tc.err

			w := f.do(http.MethodPost, "/api/conversation", "u1", chatBody)
			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			payload := decodeError(t, w)
			if payload.ErrorCode != string(tc.code) {
				t.Fatalf("unexpected code: %s", payload.ErrorCode)
			}
			if tc.message != "" && payload.Message != tc.message {
				t.Fatalf("unexpected message: %s", payload.Message)
			}
			if got := f.count("u1"); got != 0 {
				t.Fatalf("expected reservation rolled back, got %d", got)
			}
			if len(f.recorder.capabilities) != 0 {
				t.Fatalf("failed requests must not be recorded")
			}
		})
	}
}

func TestReplicateRateLimitMessage(t *testing.T) {
	f := newFixture(t, 5, nil)
	f.media.err = llm.NewProviderError(llm.ProviderReplicate, http.StatusTooManyRequests, errors.New("throttled"))

	w := f.do(http.MethodPost, "/api/music", "u1", `{"prompt":"jazz"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	if msg := decodeError(t, w).Message; msg != "Replicate API quota exceeded. Please check your plan and billing details." {
		t.Fatalf("unexpected message: %s", msg)
	}
}

func TestImageDefaultsAndOverrides(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/image", "u1", `{"prompt":"a cat"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if f.images.last.Amount != DefaultImageAmount || f.images.last.Resolution != DefaultImageResolution {
		t.Fatalf("expected defaults, got %+v", f.images.last)
	}
	var images []llm.Image
	if err := json.Unmarshal(w.Body.Bytes(), &images); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(images) != 1 || images[0].URL != "https://img.example/1.png" {
		t.Fatalf("unexpected images: %+v", images)
	}

	w = f.do(http.MethodPost, "/api/image", "u1", `{"prompt":"a cat","amount":"3","resolution":"1024x1024"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.images.last.Amount != 3 || f.images.last.Resolution != "1024x1024" {
		t.Fatalf("unexpected overrides: %+v", f.images.last)
	}

	w = f.do(http.MethodPost, "/api/image", "u1", `{"prompt":"a cat","amount":null,"resolution":null}`)
	if w.Code != http.StatusOK || f.images.last.Amount != DefaultImageAmount {
		t.Fatalf("null fields must take defaults, got %d %+v", w.Code, f.images.last)
	}
}

func TestImageInvalidInput(t *testing.T) {
	f := newFixture(t, 5, nil)

	for _, body := range []string{
		`{"prompt":"a cat","amount":0}`,
		`{"prompt":"a cat","amount":"many"}`,
		`{"prompt":"a cat","resolution":""}`,
	} {
		w := f.do(http.MethodPost, "/api/image", "u1", body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", body, w.Code)
		}
		if code := decodeError(t, w).ErrorCode; code != string(httperror.ErrorCodeInvalidInput) {
			t.Fatalf("%s: unexpected code %s", body, code)
		}
	}
	if got := f.count("u1"); got != 0 {
		t.Fatalf("invalid input must not consume quota, got %d", got)
	}
}

func TestMusicAndVideoRelayOutput(t *testing.T) {
	f := newFixture(t, 5, nil)

	w := f.do(http.MethodPost, "/api/music", "u1", `{"prompt":"jazz"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if f.media.musicPrompt != "jazz" {
		t.Fatalf("unexpected music prompt: %q", f.media.musicPrompt)
	}
	var output string
	if err := json.Unmarshal(w.Body.Bytes(), &output); err != nil || output != "https://cdn.example/out.mp3" {
		t.Fatalf("unexpected output: %s", w.Body.String())
	}

	f.media.output = []any{"frame-1", "frame-2"}
	w = f.do(http.MethodPost, "/api/video", "u1", `{"prompt":"waves"}`)
	if w.Code != http.StatusOK || f.media.videoPrompt != "waves" {
		t.Fatalf("unexpected video response: %d %q", w.Code, f.media.videoPrompt)
	}
	if got := f.count("u1"); got != 2 {
		t.Fatalf("expected count 2, got %d", got)
	}
	if f.recorder.capabilities[1] != CapabilityVideo {
		t.Fatalf("unexpected capabilities: %v", f.recorder.capabilities)
	}
}

func TestSubscribedCallerBypassesGate(t *testing.T) {
	f := newFixture(t, 1, staticSubscriptions{"pro": true})

	for i := 0; i < 3; i++ {
		if w := f.do(http.MethodPost, "/api/conversation", "pro", chatBody); w.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, w.Code)
		}
	}
	if got := f.count("pro"); got != 0 {
		t.Fatalf("subscribed caller must not be counted, got %d", got)
	}
}

func TestConcurrentRequestsNeverExceedLimit(t *testing.T) {
	f := newFixture(t, 5, nil)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	statuses := make(map[int]int)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := f.do(http.MethodPost, "/api/conversation", "u1", chatBody)
			mu.Lock()
			statuses[w.Code]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if statuses[http.StatusOK] != 5 || statuses[http.StatusForbidden] != workers-5 {
		t.Fatalf("unexpected status distribution: %v", statuses)
	}
	if got := f.count("u1"); got != 5 {
		t.Fatalf("expected count 5, got %d", got)
	}
}

func TestOutcomeOf(t *testing.T) {
	if got := outcomeOf(llm.NewProviderError(llm.ProviderGemini, 429, nil)); got != "rate_limited" {
		t.Fatalf("unexpected outcome: %s", got)
	}
	if got := outcomeOf(llm.NewProviderError(llm.ProviderGemini, 504, nil)); got != "timeout" {
		t.Fatalf("unexpected outcome: %s", got)
	}
	if got := outcomeOf(context.DeadlineExceeded); got != "timeout" {
		t.Fatalf("unexpected outcome: %s", got)
	}
	if got := outcomeOf(errors.New("boom")); got != "error" {
		t.Fatalf("unexpected outcome: %s", got)
	}
}

func TestNewGenerationHandlerValidates(t *testing.T) {
	f := newFixture(t, 5, nil)
	if _, err := NewGenerationHandler(nil, f.chat, f.images, f.media, testSystem, nil, nil, nil); err == nil {
		t.Fatalf("expected error for nil gate")
	}
	if _, err := NewGenerationHandler(f.gate, f.chat, f.images, f.media, " ", nil, nil, nil); err == nil {
		t.Fatalf("expected error for empty system instruction")
	}
}
