package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/linkpreview/internal/domain"
	"github.com/John-Robertt/linkpreview/internal/preview"
)

var _ preview.Observer = (*spinner)(nil)

var spinnerFrames = []string{"|", "/", "-", `\`}

// spinner 是单目标模式下的加载指示（只写交互终端的 stderr）。
//
// OnStateChange 在 Tracker 锁内被调用：这里只改状态、启停 goroutine，不做阻塞 IO。
type spinner struct {
	w        io.Writer
	interval time.Duration

	mu      sync.Mutex
	target  string
	started time.Time
	frame   int
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newSpinner(w io.Writer) *spinner {
	return &spinner{w: w, interval: 120 * time.Millisecond}
}

func (s *spinner) OnStateChange(snap preview.Snapshot) {
	switch {
	case snap.State == domain.StateLoading:
		s.mu.Lock()
		s.target = snap.Target
		s.started = time.Now()
		s.mu.Unlock()
		s.start()
	case snap.State.Done():
		s.Stop()
		s.mu.Lock()
		fmt.Fprintf(s.w, "\r%s %s (%s)\n", stateLabel(snap.State), truncate(s.target, 100), formatShortDuration(time.Since(s.started)))
		s.mu.Unlock()
	}
}

func (s *spinner) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go func(stop <-chan struct{}, done chan<- struct{}) {
		defer close(done)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				s.mu.Lock()
				s.frame = (s.frame + 1) % len(spinnerFrames)
				fmt.Fprintf(s.w, "\r%s loading %s", spinnerFrames[s.frame], truncate(s.target, 100))
				s.mu.Unlock()
			case <-stop:
				return
			}
		}
	}(s.stopCh, s.doneCh)
}

// Stop 停止动画并等待 goroutine 退出；可重复调用。
func (s *spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// batchProgress 在多目标模式下逐条输出完成进度。onDone 会被并发调用。
type batchProgress struct {
	w         io.Writer
	total     int
	startedAt time.Time

	mu   sync.Mutex
	done int
	ok   int
	fail int
}

func newBatchProgress(w io.Writer, total int) *batchProgress {
	return &batchProgress{w: w, total: total, startedAt: time.Now()}
}

func (p *batchProgress) OnItemDone(_ int, it domain.BatchItem) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	switch it.State {
	case domain.StateResolved:
		p.ok++
	case domain.StateFailed:
		p.fail++
	}

	src := ""
	if it.Source != "" {
		src = " source=" + it.Source
	}
	fmt.Fprintf(p.w, "[%d/%d] %s %s%s elapsed=%s\n",
		p.done, p.total, stateLabel(it.State), truncate(it.TargetURL, 100), src, formatElapsed(time.Since(p.startedAt)),
	)
}

func stateLabel(s domain.FetchState) string {
	switch s {
	case domain.StateResolved:
		return "OK"
	case domain.StateFailed:
		return "FAIL"
	default:
		return strings.ToUpper(s.String())
	}
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
