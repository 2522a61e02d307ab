package domain

import "time"

// BatchReport 是 `linkpreview fetch` 多目标模式的稳定输出（stdout JSON）。
type BatchReport struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary BatchSummary `json:"summary"`
	Items   []BatchItem  `json:"items"`
}

type BatchSummary struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}

// BatchItem 只暴露终态与结果；失败原因只进诊断日志，不进入对外结构。
type BatchItem struct {
	TargetURL string        `json:"target_url"`
	State     FetchState    `json:"state"`
	Source    string        `json:"source,omitempty"`
	Result    PreviewResult `json:"result"`
}

// Finalize 依据 Items 重新计算 Summary。Items 顺序由调用方保证与输入一致。
func (r *BatchReport) Finalize() {
	var s BatchSummary
	for _, it := range r.Items {
		switch it.State {
		case StateResolved:
			s.Resolved++
		case StateFailed:
			s.Failed++
		}
	}
	r.Summary = s
}
