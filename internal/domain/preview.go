package domain

import "strings"

const (
	// FallbackTitle 用于抓取成功但数据源未提供任何标题的情况。
	FallbackTitle = "No Title Available"
	// FallbackDescription 用于抓取成功但数据源未提供任何描述的情况。
	FallbackDescription = "No Description Available"
	// NoPreviewTitle 用于任何失败路径（超时/HTTP 错误/解析失败/空输入）。
	NoPreviewTitle = "No Preview Available"
)

// PreviewRequest 是一次预览请求的唯一输入。
type PreviewRequest struct {
	TargetURL string `json:"target_url"`
}

// Empty 报告 TargetURL 是否为空（仅空白也算空）。
func (r PreviewRequest) Empty() bool {
	return strings.TrimSpace(r.TargetURL) == ""
}

// PreviewResult 是交给展示层的稳定结构。
//
// 约束：所有字段都有确定的兜底值；调用方永远拿到完整结构，而不是 error。
type PreviewResult struct {
	Title        string `json:"title"`
	CanonicalURL string `json:"canonical_url"`
	ImageURL     string `json:"image_url"`
	Description  string `json:"description"`
	ThemeColor   string `json:"theme_color"`
}

// FailedResult 构造失败路径的兜底结果：只有主题色仍按域名规则给出。
func FailedResult(theme Theme, targetURL string) PreviewResult {
	return PreviewResult{
		Title:      NoPreviewTitle,
		ThemeColor: theme.For(targetURL),
	}
}
