package domain

import "strings"

// 元数据键：与远端 metadata 服务的 data 对象保持同名。
const (
	KeyOGTitle       = "og:title"
	KeyTitle         = "title"
	KeyURL           = "url"
	KeyImage         = "image"
	KeyLogo          = "logo"
	KeyOGImage       = "og:image"
	KeyDescription   = "description"
	KeyOGDescription = "og:description"
	KeyThemeColor    = "theme-color"
)

// Metadata 是数据源返回的原始键值（只保留字符串值）。
// 字段缺失允许为空；优先级与兜底由 Normalize 统一处理。
type Metadata map[string]string

// First 按顺序返回第一个非空值。
func (m Metadata) First(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(m[k]); v != "" {
			return v
		}
	}
	return ""
}

// Normalize 把原始元数据按固定优先级规整为 PreviewResult。
func (m Metadata) Normalize(theme Theme, targetURL string) PreviewResult {
	r := PreviewResult{
		Title:        m.First(KeyOGTitle, KeyTitle),
		CanonicalURL: m.First(KeyURL),
		ImageURL:     m.First(KeyImage, KeyLogo, KeyOGImage),
		Description:  m.First(KeyDescription, KeyOGDescription),
		ThemeColor:   m.First(KeyThemeColor),
	}
	if r.Title == "" {
		r.Title = FallbackTitle
	}
	if r.CanonicalURL == "" {
		r.CanonicalURL = targetURL
	}
	if r.Description == "" {
		r.Description = FallbackDescription
	}
	if r.ThemeColor == "" {
		r.ThemeColor = theme.For(targetURL)
	}
	return r
}
