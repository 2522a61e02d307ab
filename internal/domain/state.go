package domain

import (
	"encoding/json"
	"fmt"
)

// FetchState 是单个预览实例的抓取状态。
//
// 合法迁移：
// - Idle -> Loading
// - Loading -> Resolved / Failed
// - Resolved / Failed -> Loading（新的目标）
type FetchState int

const (
	StateIdle FetchState = iota
	StateLoading
	StateResolved
	StateFailed
)

func (s FetchState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("FetchState(%d)", int(s))
	}
}

// Done 表示该状态是否为终态（本次请求已结束）。
func (s FetchState) Done() bool {
	return s == StateResolved || s == StateFailed
}

func (s FetchState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}
