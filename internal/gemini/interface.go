package gemini

import "github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"

// Client가 ChatCompleter 인터페이스를 구현하는지 컴파일 타임 확인
var _ llm.ChatCompleter = (*Client)(nil)
