package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewMetadataClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewMetadataClient(Options{ProxyURL: "http://127.0.0.1:8080"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive")
	}
}

func TestNewPageClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewPageClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
	if tr.RetryMax != 0 {
		t.Fatalf("默认不应重试，实际 RetryMax=%d", tr.RetryMax)
	}
}

func TestNewMetadataClient_InvalidProxyURL(t *testing.T) {
	if _, err := NewMetadataClient(Options{ProxyURL: "http://[::1"}); err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestNewMetadataClient_RetryClamped(t *testing.T) {
	c, err := NewMetadataClient(Options{RetryMax: 99})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if got := c.Transport.(*Transport).RetryMax; got != maxRetry {
		t.Fatalf("期望 RetryMax=%d，实际 %d", maxRetry, got)
	}
}

func TestTransport_SetsHeaders(t *testing.T) {
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
	}))
	defer srv.Close()

	c, err := NewMetadataClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()

	if gotUA == "" {
		t.Fatalf("期望注入 User-Agent")
	}
	if gotAccept != "application/json" {
		t.Fatalf("期望 Accept=application/json，实际 %q", gotAccept)
	}
}

func TestTransport_RetriesTransportErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		// 直接断开连接，制造传输层错误。
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Errorf("ResponseWriter 不支持 Hijack")
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer srv.Close()

	tr := &Transport{Base: &http.Transport{DisableKeepAlives: true}, RetryMax: 2}
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL, nil)
	if _, err := tr.RoundTrip(req); err == nil {
		t.Fatalf("期望传输错误，但得到 nil")
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("期望 3 次尝试（1 + 2 次重试），实际 %d", got)
	}
}

func TestTransport_NoRetryAfterCancel(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tr := &Transport{Base: &http.Transport{}, RetryMax: 3}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	_, err := tr.RoundTrip(req)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("期望 context.Canceled，实际 %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 0 {
		t.Fatalf("ctx 已取消时不应发出请求，实际 %d 次", got)
	}
}

func TestNewMetadataClient_LimitsFollowTimeout(t *testing.T) {
	c, err := NewMetadataClient(Options{})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c.Timeout != defaultTimeout || c.Transport.(*Transport).Base.ResponseHeaderTimeout != defaultHeaderTimeout {
		t.Fatalf("未给出超时时应使用默认上限，实际 total=%v header=%v", c.Timeout, c.Transport.(*Transport).Base.ResponseHeaderTimeout)
	}

	for _, timeout := range []time.Duration{20 * time.Second, 60 * time.Second} {
		c, err := NewPageClient(Options{Timeout: timeout})
		if err != nil {
			t.Fatalf("不期望错误：%v", err)
		}
		header := c.Transport.(*Transport).Base.ResponseHeaderTimeout
		if c.Timeout <= timeout || header <= timeout {
			t.Fatalf("timeout=%v 时 client 上限必须晚于它，实际 total=%v header=%v", timeout, c.Timeout, header)
		}
	}
}
