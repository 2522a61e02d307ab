package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/John-Robertt/linkpreview/internal/domain"
	"github.com/John-Robertt/linkpreview/internal/preview"
)

// RunBatch 以有界并发为多个目标各做一次预览抓取。
//
// 每个目标使用独立的超时；单个目标失败只影响它自己的条目。
// Items 顺序与 targets 一致；onDone 可为 nil，且可能被并发调用。
func RunBatch(ctx context.Context, r preview.Resolver, targets []string, timeout time.Duration, concurrency int, onDone func(idx int, it domain.BatchItem)) domain.BatchReport {
	rr := domain.BatchReport{
		StartedAt: time.Now().UTC(),
		Items:     make([]domain.BatchItem, len(targets)),
	}
	if concurrency < 1 {
		concurrency = 1
	}

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			out := r.Resolve(ctx, target, timeout)
			it := domain.BatchItem{
				TargetURL: target,
				State:     out.State,
				Source:    out.Source,
				Result:    out.Result,
			}
			rr.Items[i] = it
			if onDone != nil {
				onDone(i, it)
			}
			return nil
		})
	}
	_ = g.Wait()

	rr.FinishedAt = time.Now().UTC()
	rr.Finalize()
	return rr
}
