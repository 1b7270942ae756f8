package prompt

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/llm"
)

//go:embed prompts/*.yml
var embedded embed.FS

// 기본 번들에 포함된 프롬프트 이름입니다.
const (
	NameCode = "code"
)

// Bundle: 기능별 시스템 지시문 모음을 관리합니다.
type Bundle struct {
	systems map[string]string
}

// Load: 바이너리에 포함된 기본 프롬프트 번들을 로드합니다.
func Load() (*Bundle, error) {
	sub, err := fs.Sub(embedded, "prompts")
	if err != nil {
		return nil, fmt.Errorf("open embedded prompts: %w", err)
	}
	return LoadBundle(sub, ".")
}

// LoadBundle: fs 내 dir 디렉터리의 YAML 프롬프트들을 로드하여 Bundle로 반환합니다.
func LoadBundle(fsys fs.FS, dir string) (*Bundle, error) {
	systems, err := readInstructions(fsys, dir)
	if err != nil {
		return nil, err
	}
	return &Bundle{systems: systems}, nil
}

// System: 이름으로 시스템 지시문을 조회합니다.
func (b *Bundle) System(name string) (string, error) {
	if b == nil || b.systems == nil {
		return "", fmt.Errorf("prompts not initialized")
	}
	system, ok := b.systems[name]
	if !ok {
		return "", fmt.Errorf("prompt not found: %s", name)
	}
	if system == "" {
		return "", fmt.Errorf("prompt field missing: %s.system", name)
	}
	return system, nil
}

// Prepend: 시스템 지시문을 대화 맨 앞에 붙인 새 슬라이스를 반환합니다. 입력은 바꾸지 않습니다.
func Prepend(system string, messages []llm.Message) []llm.Message {
	out := make([]llm.Message, 0, len(messages)+1)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: system})
	return append(out, messages...)
}
