package domain

import "strings"

const (
	// DefaultPrimaryToken 是 psu.edu 域名下的默认主题色（theme token A）。
	DefaultPrimaryToken = "var(--ddd-primary-2)"
	// DefaultOtherToken 是其他域名的默认主题色（theme token B）。
	DefaultOtherToken = "var(--ddd-primary-13)"

	primaryDomainMarker = "psu.edu"
)

// Theme 是数据源未提供 theme-color 时的两档默认主题色。
// 规则固定为二分：包含 psu.edu 用 Primary，否则用 Other；只有 token 值允许配置。
type Theme struct {
	Primary string
	Other   string
}

// DefaultTheme 返回内置 token。
func DefaultTheme() Theme {
	return Theme{Primary: DefaultPrimaryToken, Other: DefaultOtherToken}
}

// For 按目标 URL 选择默认主题色（区分大小写的子串匹配）。
func (t Theme) For(targetURL string) string {
	if strings.Contains(targetURL, primaryDomainMarker) {
		return t.primary()
	}
	return t.other()
}

func (t Theme) primary() string {
	if strings.TrimSpace(t.Primary) == "" {
		return DefaultPrimaryToken
	}
	return t.Primary
}

func (t Theme) other() string {
	if strings.TrimSpace(t.Other) == "" {
		return DefaultOtherToken
	}
	return t.Other
}
