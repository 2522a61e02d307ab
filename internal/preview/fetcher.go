package preview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/linkpreview/internal/domain"
	"github.com/John-Robertt/linkpreview/internal/provider"
)

// DefaultTimeout 是单次预览抓取的默认超时。
const DefaultTimeout = 5 * time.Second

var (
	// ErrEmptyTarget 表示目标 URL 为空：直接兜底，不发请求。
	ErrEmptyTarget = errors.New("empty target url")
	// ErrTimeout 表示抓取在超时前未完成。
	ErrTimeout = errors.New("no preview: timed out")
)

// 失败原因分类（只用于诊断日志）。
const (
	ReasonEmptyInput = "empty_input"
	ReasonTimeout    = "timeout"
	ReasonHTTPStatus = "http_status"
	ReasonNetwork    = "network"
	ReasonParse      = "parse"
	ReasonCanceled   = "canceled"
)

// Outcome 是一次抓取的完整结果：对外只应暴露 State 与 Result。
type Outcome struct {
	State    domain.FetchState
	Result   domain.PreviewResult
	Source   string
	Err      error
	Attempts []provider.Attempt
}

// Fetcher 获取目标 URL 的元数据并规整为 PreviewResult。
//
// 约束：
// - 任何失败（空输入/超时/HTTP 错误/网络错误/解析失败）都收敛为同一个兜底结果
// - 超时通过 ctx 取消真实中止网络请求，而不是丢弃一个仍在进行的请求
// - 不做重试（重试策略只存在于 httpx，且默认关闭）
type Fetcher struct {
	Registry provider.Registry
	// Sources 是按顺序尝试的数据源；为空时只用 "hax"。
	Sources []string
	Cache   provider.BodyCache
	Theme   domain.Theme
	// Timeout 在 Fetch/Resolve 传入的 timeout<=0 时使用；为 0 时使用 DefaultTimeout。
	Timeout time.Duration
}

// Fetch 永远返回一个 PreviewResult，失败时返回兜底值。
func (f *Fetcher) Fetch(ctx context.Context, targetURL string, timeout time.Duration) domain.PreviewResult {
	return f.Resolve(ctx, targetURL, timeout).Result
}

// Resolve 与 Fetch 相同，但额外返回终态与内部原因（供 Tracker 与诊断使用）。
func (f *Fetcher) Resolve(ctx context.Context, targetURL string, timeout time.Duration) Outcome {
	log := zerolog.Ctx(ctx).With().Str("target", targetURL).Logger()

	if (domain.PreviewRequest{TargetURL: targetURL}).Empty() {
		log.Debug().Str("reason", ReasonEmptyInput).Msg("Skipping preview fetch")
		return Outcome{State: domain.StateFailed, Result: domain.FailedResult(f.Theme, targetURL), Err: ErrEmptyTarget}
	}

	if timeout <= 0 {
		timeout = f.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	meta, used, attempts, err := provider.FetchParseTrace(fctx, f.Registry, f.sources(), targetURL, f.Cache)
	if err != nil {
		if errors.Is(fctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		reason := Reason(err)
		ev := log.Warn()
		if reason == ReasonCanceled {
			// 被更新的请求取代：属于预期路径。
			ev = log.Debug()
		}
		ev.Err(err).
			Str("reason", reason).
			Dur("elapsed", time.Since(started)).
			Msg("Failed to fetch preview metadata")
		return Outcome{
			State:    domain.StateFailed,
			Result:   domain.FailedResult(f.Theme, targetURL),
			Err:      err,
			Attempts: attempts,
		}
	}

	log.Debug().Str("source", used).Dur("elapsed", time.Since(started)).Msg("Fetched preview metadata")
	return Outcome{
		State:    domain.StateResolved,
		Result:   meta.Normalize(f.Theme, targetURL),
		Source:   used,
		Attempts: attempts,
	}
}

func (f *Fetcher) sources() []string {
	if len(f.Sources) == 0 {
		return []string{"hax"}
	}
	return f.Sources
}

// Reason 把内部错误归类为诊断用的短标签。
func Reason(err error) string {
	if err == nil {
		return ""
	}
	var (
		se *provider.HTTPStatusError
		pe *provider.Error
	)
	switch {
	case errors.Is(err, ErrEmptyTarget):
		return ReasonEmptyInput
	case errors.Is(err, ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.As(err, &se):
		return ReasonHTTPStatus
	case errors.As(err, &pe) && pe.Stage == provider.StageParse:
		return ReasonParse
	default:
		return ReasonNetwork
	}
}
