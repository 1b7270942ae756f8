package gemini

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"google.golang.org/genai"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.GeminiConfig{
		APIKeys:        []string{"key-a", "key-b"},
		Model:          "gemini-2.5-flash",
		TimeoutSeconds: 5,
	})
	client.baseURL = srv.URL
	return client
}

func TestCompleteReturnsAssistantMessage(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-2.5-flash:generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "fmt.Println(1)"}]}}],
			"usageMetadata": {"promptTokenCount": 4, "candidatesTokenCount": 6, "totalTokenCount": 10}
		}`))
	})

	result, err := client.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a code generator."},
		{Role: llm.RoleUser, Content: "print one"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if result.Message.Role != llm.RoleAssistant || !strings.Contains(result.Message.Content, "fmt.Println") {
		t.Fatalf("unexpected message: %+v", result.Message)
	}
	if result.Usage.InputTokens != 4 || result.Usage.OutputTokens != 6 {
		t.Fatalf("unexpected usage: %+v", result.Usage)
	}
	if _, ok := received["systemInstruction"]; !ok {
		t.Fatalf("expected system instruction in request: %v", received)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"}}`))
	})

	_, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	var providerErr *llm.ProviderError
	if !errors.As(err, &providerErr) || !providerErr.RateLimited() {
		t.Fatalf("expected rate limited provider error, got %v", err)
	}
}

func TestCompleteWithoutKeys(t *testing.T) {
	client := NewClient(config.GeminiConfig{Model: "gemini-2.5-flash"})
	if client.Configured() {
		t.Fatalf("expected unconfigured client")
	}
	_, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if !errors.Is(err, llm.ErrMissingCredentials) {
		t.Fatalf("expected missing credentials, got %v", err)
	}
}

func TestSelectClientRotatesKeys(t *testing.T) {
	client := newTestClient(t, func(http.ResponseWriter, *http.Request) {})
	for i := 0; i < 3; i++ {
		if _, err := client.selectClient(context.Background()); err != nil {
			t.Fatalf("select client: %v", err)
		}
	}
	if len(client.clients) != 2 {
		t.Fatalf("expected one cached client per key, got %d", len(client.clients))
	}
}

func TestBuildContents(t *testing.T) {
	system, contents := buildContents([]llm.Message{
		{Role: "system", Content: "SYS"},
		{Role: "assistant", Content: "A1"},
		{Role: "user", Content: "Q1"},
		{Role: "", Content: "Q2"},
	})
	if system != "SYS" {
		t.Fatalf("unexpected system prompt: %q", system)
	}
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[0].Role != string(genai.RoleModel) || contents[0].Parts[0].Text != "A1" {
		t.Fatalf("unexpected first content: %+v", contents[0])
	}
	if contents[2].Role != string(genai.RoleUser) {
		t.Fatalf("expected user role for empty role, got %s", contents[2].Role)
	}
}

func TestExtractParts(t *testing.T) {
	texts, thoughts := extractParts(nil)
	if texts != nil || thoughts != nil {
		t.Fatalf("expected nil parts for nil response")
	}

	response := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: "answer"},
						{Text: "thought", Thought: true},
						{Text: ""},
						nil,
					},
				},
			},
		},
	}
	texts, thoughts = extractParts(response)
	if len(texts) != 1 || texts[0] != "answer" {
		t.Fatalf("unexpected texts: %v", texts)
	}
	if len(thoughts) != 1 || thoughts[0] != "thought" {
		t.Fatalf("unexpected thoughts: %v", thoughts)
	}
}

func TestExtractUsage(t *testing.T) {
	response := &genai.GenerateContentResponse{
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     10,
			CandidatesTokenCount: 20,
			ThoughtsTokenCount:   3,
			TotalTokenCount:      33,
		},
	}
	usage := extractUsage(response)
	if usage.InputTokens != 10 || usage.OutputTokens != 23 || usage.TotalTokens != 33 || usage.ReasoningTokens != 3 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
}

func TestClassifyAPIError(t *testing.T) {
	err := classify(genai.APIError{Code: 429, Message: "exhausted"})
	var providerErr *llm.ProviderError
	if !errors.As(err, &providerErr) || providerErr.StatusCode != 429 {
		t.Fatalf("expected status 429, got %v", err)
	}
}
