package llm

import "context"

// 메시지 역할입니다.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message: 채팅 메시지 한 건입니다.
type Message struct {
	Role    string `json:"role" mapstructure:"role"`
	Content string `json:"content" mapstructure:"content"`
}

// Usage: 토큰 사용량 정보를 담습니다.
type Usage struct {
	InputTokens     int `json:"input_tokens"`
	OutputTokens    int `json:"output_tokens"`
	TotalTokens     int `json:"total_tokens"`
	ReasoningTokens int `json:"reasoning_tokens"`
}

// ChatResult: 채팅 응답의 첫 번째 메시지와 사용량을 담습니다.
type ChatResult struct {
	Message Message
	Usage   Usage
}

// Image: 생성된 이미지 한 건입니다.
type Image struct {
	URL           string `json:"url,omitempty"`
	B64JSON       string `json:"b64_json,omitempty"`
	RevisedPrompt string `json:"revised_prompt,omitempty"`
}

// ChatCompleter: 채팅 완성 백엔드 인터페이스입니다.
// 테스트에서 mock 구현을 주입할 수 있도록 합니다.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []Message) (ChatResult, error)
}
