package provider

import (
	"context"
	"io"
	"net/http"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

// Provider 把“数据源差异”限制在 provider 包内部；核心流程只依赖统一接口与稳定的 Metadata。
//
// 约束：
// - Fetch 不做缓存、不做超时管理（这些由 FetchParseTrace 与调用方的 ctx 统一控制）
// - Fetch 必须把 ctx 绑定到网络请求上：ctx 取消即中止请求
// - Parse 必须是纯函数：相同输入 => 相同输出；失败时不返回部分结果
type Provider interface {
	Name() string
	Fetch(ctx context.Context, targetURL string) (body []byte, err error)
	Parse(targetURL string, body []byte) (domain.Metadata, error)
}

// maxBodyBytes 限制单次响应体大小，metadata 与 <head> 都远小于该值。
const maxBodyBytes = 2 << 20

// GetBody 发起 GET 并读取响应体；非 2xx 返回 *HTTPStatusError。
func GetBody(ctx context.Context, c *http.Client, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPStatusError{URL: u, StatusCode: resp.StatusCode, Location: resp.Header.Get("Location")}
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
