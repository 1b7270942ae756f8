package health

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/park285/llm-kakao-bots/ai-gateway-go/internal/config"
)

var startTime = time.Now()

const (
	statusOK       = "ok"
	statusDegraded = "degraded"

	defaultProbeTimeout = 2 * time.Second
)

// Pinger 는 연결 상태를 확인할 수 있는 의존성이다.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc 는 함수를 Pinger 로 쓴다.
type PingFunc func(ctx context.Context) error

// Ping 은 f 를 호출한다.
func (f PingFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

// Component 는 상태 구성 요소다.
type Component struct {
	Status string         `json:"status"`
	Detail map[string]any `json:"detail"`
}

// Response 는 상태 응답 본문이다.
type Response struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Checker 는 헬스 상태를 수집한다.
type Checker struct {
	cfg     *config.Config
	probes  map[string]Pinger
	timeout time.Duration
}

// NewChecker 는 이름별 deep probe 를 가진 Checker 를 생성한다.
func NewChecker(cfg *config.Config, probes map[string]Pinger) *Checker {
	return &Checker{
		cfg:     cfg,
		probes:  probes,
		timeout: defaultProbeTimeout,
	}
}

// Collect 는 헬스 상태를 수집한다. deep 이면 등록된 probe 를 동시에 실행한다.
func (c *Checker) Collect(ctx context.Context, deep bool) Response {
	components := map[string]Component{
		"app": buildAppStatus(),
	}
	for name, component := range c.Providers() {
		components[name] = component
	}
	for name, component := range c.runProbes(ctx, deep) {
		components[name] = component
	}

	return Response{
		Status:     overallStatus(components),
		Components: components,
	}
}

// Providers 는 제공자별 자격 증명 설정 상태를 반환한다.
func (c *Checker) Providers() map[string]Component {
	cfg := c.cfg
	if cfg == nil {
		cfg = &config.Config{}
	}

	geminiRequired := cfg.Chat.Provider == config.ChatProviderGemini
	return map[string]Component{
		"openai": credentialStatus(cfg.OpenAI.APIKey != "", true, map[string]any{
			"chat_model":      cfg.OpenAI.ChatModel,
			"image_model":     cfg.OpenAI.ImageModel,
			"timeout_seconds": cfg.OpenAI.TimeoutSeconds,
		}),
		"gemini": credentialStatus(cfg.Gemini.PrimaryKey() != "", geminiRequired, map[string]any{
			"model":           cfg.Gemini.Model,
			"key_count":       len(cfg.Gemini.APIKeys),
			"timeout_seconds": cfg.Gemini.TimeoutSeconds,
		}),
		"replicate": credentialStatus(cfg.Replicate.APIToken != "", true, map[string]any{
			"music_model":     cfg.Replicate.MusicModel,
			"video_model":     cfg.Replicate.VideoModel,
			"timeout_seconds": cfg.Replicate.TimeoutSeconds,
		}),
	}
}

func (c *Checker) runProbes(ctx context.Context, deep bool) map[string]Component {
	results := make(map[string]Component, len(c.probes))
	if !deep {
		for name := range c.probes {
			results[name] = Component{Status: statusOK, Detail: map[string]any{"deep_checked": false}}
		}
		return results
	}

	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	var mu sync.Mutex
	var group errgroup.Group
	for name, probe := range c.probes {
		group.Go(func() error {
			start := time.Now()
			err := probe.Ping(checkCtx)
			component := Component{
				Status: statusOK,
				Detail: map[string]any{
					"deep_checked": true,
					"latency_ms":   time.Since(start).Milliseconds(),
				},
			}
			if err != nil {
				component.Status = statusDegraded
				component.Detail["error"] = err.Error()
			}
			mu.Lock()
			results[name] = component
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func buildAppStatus() Component {
	return Component{
		Status: statusOK,
		Detail: map[string]any{
			"uptime_seconds": int(time.Since(startTime).Seconds()),
		},
	}
}

func credentialStatus(present bool, required bool, detail map[string]any) Component {
	detail["api_key_present"] = present
	detail["required"] = required
	status := statusOK
	if required && !present {
		status = statusDegraded
	}
	return Component{Status: status, Detail: detail}
}

func overallStatus(components map[string]Component) string {
	for _, component := range components {
		if component.Status != statusOK {
			return statusDegraded
		}
	}
	return statusOK
}
