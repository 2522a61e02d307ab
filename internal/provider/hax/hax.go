package hax

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/John-Robertt/linkpreview/internal/domain"
	providerx "github.com/John-Robertt/linkpreview/internal/provider"
)

const (
	// DefaultBaseURL 是公共 metadata 服务的默认域名。
	DefaultBaseURL = "https://open-apis.hax.cloud"
	// MetadataPath 是 metadata 查询接口路径（本地 serve 也暴露同一路径）。
	MetadataPath = "/api/services/website/metadata"
)

// Envelope 是 metadata 服务的响应外壳：{"data": {...}}，data 内所有字段可选。
type Envelope struct {
	Data map[string]string `json:"data"`
}

// Provider 通过远端 metadata 服务获取目标 URL 的元数据。
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL。
	BaseURL string
	Client  *http.Client
}

func (Provider) Name() string { return "hax" }

func (p Provider) baseURL() string {
	u := strings.TrimSpace(p.BaseURL)
	if u == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(u, "/")
}

// MetadataURL 拼出查询地址：targetURL 整体做 query 转义。
func (p Provider) MetadataURL(targetURL string) string {
	return p.baseURL() + MetadataPath + "?q=" + url.QueryEscape(targetURL)
}

func (p Provider) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	if p.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	if strings.TrimSpace(targetURL) == "" {
		return nil, errors.New("targetURL 不能为空")
	}
	return providerx.GetBody(ctx, p.Client, p.MetadataURL(targetURL))
}

// Parse 解析 {"data": {...}}。
//
// data 缺失、为 null 或不是对象都视为解析失败（整包丢弃，不做部分提取）。
// data 内非字符串的值视为缺失。
func (Provider) Parse(targetURL string, body []byte) (domain.Metadata, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("响应为空")
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("响应不是合法 JSON 对象：%w", err)
	}
	raw := bytes.TrimSpace(env.Data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errors.New("响应缺少 data")
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("data 不是对象：%w", err)
	}

	m := make(domain.Metadata, len(fields))
	for k, v := range fields {
		if s, ok := v.(string); ok {
			m[k] = s
		}
	}
	return m, nil
}
