package preview

import (
	"context"
	"sync"
	"time"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

// Resolver 是 Tracker 对抓取实现的最小依赖（*Fetcher 满足该接口）。
type Resolver interface {
	Resolve(ctx context.Context, targetURL string, timeout time.Duration) Outcome
}

// Snapshot 是某一时刻的展示状态。
type Snapshot struct {
	Seq    uint64               `json:"seq"`
	Target string               `json:"target_url"`
	State  domain.FetchState    `json:"state"`
	Source string               `json:"source,omitempty"`
	Result domain.PreviewResult `json:"result"`
}

// Observer 接收状态变化。
//
// 约束：回调在 Tracker 内部锁内同步调用（保证事件顺序与状态一致），
// 实现必须足够快，且不能回调 Tracker 自身。
type Observer interface {
	OnStateChange(s Snapshot)
}

// ObserverFunc 让普通函数满足 Observer。
type ObserverFunc func(Snapshot)

func (f ObserverFunc) OnStateChange(s Snapshot) { f(s) }

// Tracker 维护单个预览实例的 FetchState。
//
// 约束：
// - 每个请求分配单调递增的 seq；只有 seq 仍是最新的完成结果才会写入状态
// - 发起新请求会取消上一个未完成请求的 ctx（被取消的结果同样会被丢弃）
// - 同一 target 在 Loading/Resolved 时重复请求不触发新抓取；Failed 时允许重试
type Tracker struct {
	resolver Resolver
	timeout  time.Duration
	obs      Observer

	mu     sync.Mutex
	seq    uint64
	cur    Snapshot
	cancel context.CancelFunc
}

func NewTracker(r Resolver, timeout time.Duration, obs Observer) *Tracker {
	return &Tracker{resolver: r, timeout: timeout, obs: obs}
}

// Snapshot 返回当前状态的副本。
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cur
}

// Load 为 targetURL 发起抓取并阻塞到该请求结束。
//
// 返回值：
// - Snapshot：返回时刻的最新状态（若本请求已被更新的请求取代，则是更新请求的状态）
// - applied：本请求的结果是否写入了状态
func (t *Tracker) Load(ctx context.Context, targetURL string) (Snapshot, bool) {
	t.mu.Lock()
	if t.cur.Target == targetURL && (t.cur.State == domain.StateLoading || t.cur.State == domain.StateResolved) {
		s := t.cur
		t.mu.Unlock()
		return s, false
	}

	if t.cancel != nil {
		t.cancel()
	}
	t.seq++
	seq := t.seq
	rctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.cur = Snapshot{Seq: seq, Target: targetURL, State: domain.StateLoading}
	t.notifyLocked()
	t.mu.Unlock()

	out := t.resolver.Resolve(rctx, targetURL, t.timeout)

	t.mu.Lock()
	defer t.mu.Unlock()
	cancel()
	if t.cur.Seq != seq {
		return t.cur, false
	}
	t.cancel = nil
	t.cur.State = out.State
	t.cur.Result = out.Result
	t.cur.Source = out.Source
	t.notifyLocked()
	return t.cur, true
}

func (t *Tracker) notifyLocked() {
	if t.obs != nil {
		t.obs.OnStateChange(t.cur)
	}
}
