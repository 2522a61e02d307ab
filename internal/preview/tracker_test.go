package preview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

// gateResolver 让每个 target 的完成时机由测试控制。
type gateResolver struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	started chan string
	ctxErr  map[string]error
}

func newGateResolver() *gateResolver {
	return &gateResolver{
		gates:   map[string]chan struct{}{},
		started: make(chan string, 8),
		ctxErr:  map[string]error{},
	}
}

func (g *gateResolver) gate(target string) chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[target]
	if !ok {
		ch = make(chan struct{})
		g.gates[target] = ch
	}
	return ch
}

func (g *gateResolver) Resolve(ctx context.Context, targetURL string, timeout time.Duration) Outcome {
	g.started <- targetURL
	<-g.gate(targetURL)
	g.mu.Lock()
	g.ctxErr[targetURL] = ctx.Err()
	g.mu.Unlock()
	return Outcome{
		State:  domain.StateResolved,
		Result: domain.PreviewResult{Title: "title of " + targetURL},
		Source: "hax",
	}
}

func TestTracker_StaleCompletionDiscarded(t *testing.T) {
	g := newGateResolver()
	tr := NewTracker(g, time.Second, nil)

	type loadRes struct {
		s       Snapshot
		applied bool
	}
	firstDone := make(chan loadRes, 1)
	go func() {
		s, ok := tr.Load(context.Background(), "https://a.test")
		firstDone <- loadRes{s, ok}
	}()
	<-g.started

	secondDone := make(chan loadRes, 1)
	go func() {
		s, ok := tr.Load(context.Background(), "https://b.test")
		secondDone <- loadRes{s, ok}
	}()
	<-g.started

	// 新请求先完成，旧请求后完成：旧结果不能覆盖新结果。
	close(g.gate("https://b.test"))
	second := <-secondDone
	if !second.applied || second.s.Result.Title != "title of https://b.test" {
		t.Fatalf("第二个请求应生效，实际 %+v", second)
	}

	close(g.gate("https://a.test"))
	first := <-firstDone
	if first.applied {
		t.Fatalf("过期请求不应生效：%+v", first)
	}

	s := tr.Snapshot()
	if s.Target != "https://b.test" || s.State != domain.StateResolved || s.Seq != 2 {
		t.Fatalf("最终状态不符合预期：%+v", s)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ctxErr["https://a.test"] == nil {
		t.Fatalf("被取代的请求应收到取消信号")
	}
}

func TestTracker_StateTransitions(t *testing.T) {
	g := newGateResolver()

	var (
		mu     sync.Mutex
		states []domain.FetchState
	)
	obs := ObserverFunc(func(s Snapshot) {
		mu.Lock()
		states = append(states, s.State)
		mu.Unlock()
	})
	tr := NewTracker(g, time.Second, obs)

	if s := tr.Snapshot(); s.State != domain.StateIdle {
		t.Fatalf("初始状态应为 Idle，实际 %s", s.State)
	}

	close(g.gate("https://a.test"))
	if _, ok := tr.Load(context.Background(), "https://a.test"); !ok {
		t.Fatalf("首次请求应生效")
	}
	<-g.started

	// 同一目标已 Resolved：不重新抓取。
	if s, ok := tr.Load(context.Background(), "https://a.test"); ok || s.Seq != 1 {
		t.Fatalf("同一目标不应重新抓取：ok=%v s=%+v", ok, s)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []domain.FetchState{domain.StateLoading, domain.StateResolved}
	if len(states) != len(want) {
		t.Fatalf("期望状态序列 %v，实际 %v", want, states)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("期望状态序列 %v，实际 %v", want, states)
		}
	}
}

type failingResolver struct{ calls int }

func (f *failingResolver) Resolve(ctx context.Context, targetURL string, timeout time.Duration) Outcome {
	f.calls++
	return Outcome{State: domain.StateFailed, Result: domain.FailedResult(domain.DefaultTheme(), targetURL)}
}

func TestTracker_FailedSameTargetRetries(t *testing.T) {
	r := &failingResolver{}
	tr := NewTracker(r, time.Second, nil)

	s, _ := tr.Load(context.Background(), "https://a.test")
	if s.State != domain.StateFailed {
		t.Fatalf("期望 Failed，实际 %s", s.State)
	}
	if _, ok := tr.Load(context.Background(), "https://a.test"); !ok {
		t.Fatalf("Failed 后同一目标应允许重试")
	}
	if r.calls != 2 {
		t.Fatalf("期望 2 次抓取，实际 %d", r.calls)
	}
}

func TestTracker_WithFetcherEmptyTarget(t *testing.T) {
	f := &Fetcher{Theme: domain.DefaultTheme()}
	tr := NewTracker(f, time.Second, nil)

	s, ok := tr.Load(context.Background(), "")
	if !ok || s.State != domain.StateFailed {
		t.Fatalf("空目标应直接进入 Failed，实际 ok=%v %+v", ok, s)
	}
	if s.Result.Title != domain.NoPreviewTitle {
		t.Fatalf("期望兜底标题，实际 %q", s.Result.Title)
	}
}
