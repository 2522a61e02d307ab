package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

// Stage 取值。
const (
	StageFetch = "fetch"
	StageParse = "parse"
	StageCache = "cache"
	StageOK    = "ok"
)

// Attempt 记录一次数据源尝试（用于诊断日志解释失败/回退原因）。
// 注意：这是内部执行轨迹，不进入对外的 PreviewResult。
type Attempt struct {
	Provider string
	Stage    string
	Err      error // nil when Stage 为 ok 或 cache
}

// BodyCache 是 FetchParseTrace 需要的最小缓存能力；nil 表示不使用缓存。
type BodyCache interface {
	ReadBody(source, targetURL string) ([]byte, bool, error)
	WriteBody(source, targetURL string, body []byte) error
}

// FetchParseTrace 按 order 依次尝试数据源，返回第一个成功解析的元数据与尝试链路。
//
// ctx 取消（超时）后不再尝试后续数据源：剩余的数据源同样会立即失败，没有意义。
func FetchParseTrace(ctx context.Context, reg Registry, order []string, targetURL string, bc BodyCache) (meta domain.Metadata, used string, attempts []Attempt, err error) {
	if strings.TrimSpace(targetURL) == "" {
		return nil, "", nil, fmt.Errorf("targetURL 不能为空")
	}
	if len(order) == 0 {
		return nil, "", nil, fmt.Errorf("未配置任何数据源")
	}

	var lastErr error
	for _, name := range order {
		name = strings.ToLower(strings.TrimSpace(name))
		p, ok := reg.Get(name)
		if !ok {
			lastErr = fmt.Errorf("provider 未注册：%q", name)
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: lastErr})
			continue
		}

		if bc != nil {
			if b, hit, cerr := bc.ReadBody(name, targetURL); cerr == nil && hit {
				if m, perr := p.Parse(targetURL, b); perr == nil {
					attempts = append(attempts, Attempt{Provider: name, Stage: StageCache})
					return m, name, attempts, nil
				}
				// 缓存内容损坏：当作 miss，继续走网络。
			}
		}

		body, ferr := p.Fetch(ctx, targetURL)
		if ferr != nil {
			lastErr = &Error{Provider: name, Stage: StageFetch, Err: ferr}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageFetch, Err: ferr})
			if ctx.Err() != nil {
				break
			}
			continue
		}

		m, perr := p.Parse(targetURL, body)
		if perr != nil {
			lastErr = &Error{Provider: name, Stage: StageParse, Err: perr}
			attempts = append(attempts, Attempt{Provider: name, Stage: StageParse, Err: perr})
			continue
		}

		if bc != nil {
			_ = bc.WriteBody(name, targetURL, body)
		}
		attempts = append(attempts, Attempt{Provider: name, Stage: StageOK})
		return m, name, attempts, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("无可用数据源")
	}
	return nil, "", attempts, lastErr
}

// Error 是数据源阶段的可追溯错误。
type Error struct {
	Provider string
	Stage    string // "fetch" 或 "parse"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s: %v", e.Provider, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
