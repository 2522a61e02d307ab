package httpx

import (
	"errors"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// defaultTimeout / defaultHeaderTimeout 只在未给出 Options.Timeout 时使用。
	defaultTimeout       = 30 * time.Second
	defaultHeaderTimeout = 15 * time.Second
	// timeoutGrace 让 client 自身的上限总是晚于调用方 ctx 的截止时间。
	timeoutGrace = 5 * time.Second
	maxRetry     = 5
)

// Transport 把“UA 池 + 代理 + 固定 Accept + 有界重试”固化为统一策略。
//
// 设计目标：provider 只负责“拼 URL + 解析响应”，不关心网络策略细节。
type Transport struct {
	Base *http.Transport

	ua *uaPool

	// Accept 在请求未显式设置时补上（metadata 服务要 JSON，页面抓取要 HTML）。
	Accept string

	// RetryMax 表示最大重试次数（不含首次尝试）。默认 0：预览不做重试。
	RetryMax int

	// DisableKeepAlives 决定是否对 Request 设置 Close=true（额外保险）。
	DisableKeepAlives bool
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	if t.Base == nil {
		return nil, errors.New("nil base transport")
	}

	// 只对“可重放”的请求做重试：GET/HEAD 且无 body。
	canRetry := (req.Method == http.MethodGet || req.Method == http.MethodHead) && req.Body == nil
	max := t.RetryMax
	if max < 0 || !canRetry {
		max = 0
	}

	var lastErr error
	for attempt := 0; attempt <= max; attempt++ {
		r := req.Clone(req.Context())
		if r.Header.Get("User-Agent") == "" && t.ua != nil {
			r.Header.Set("User-Agent", t.ua.random())
		}
		if r.Header.Get("Accept") == "" && t.Accept != "" {
			r.Header.Set("Accept", t.Accept)
		}
		if t.DisableKeepAlives {
			r.Close = true
		}

		resp, err := t.Base.RoundTrip(r)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if req.Context().Err() != nil {
			// ctx 已取消（通常是预览超时）：不再重试。
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// Options 是构造 client 的网络策略。
type Options struct {
	ProxyURL string
	RetryMax int
	// Timeout 是调用方 ctx 使用的单次抓取超时；client 的内置上限不会早于它触发。
	Timeout time.Duration
}

// NewMetadataClient 构造访问远端 metadata 服务的 client（期望 JSON）。
func NewMetadataClient(opts Options) (*http.Client, error) {
	return newClient(opts, "application/json")
}

// NewPageClient 构造直接抓取目标页面的 client（期望 HTML）。
func NewPageClient(opts Options) (*http.Client, error) {
	return newClient(opts, "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
}

// limits 返回 (client 总超时, 等待响应头超时)。
// 约束：真正的截止时间只由调用方 ctx 决定；这里的上限只兜底没有 deadline 的 ctx。
func (o Options) limits() (total, header time.Duration) {
	if o.Timeout <= 0 {
		return defaultTimeout, defaultHeaderTimeout
	}
	total = max(defaultTimeout, o.Timeout+timeoutGrace)
	header = max(defaultHeaderTimeout, o.Timeout+timeoutGrace)
	return total, header
}

func newClient(opts Options, accept string) (*http.Client, error) {
	total, header := opts.limits()
	base := &http.Transport{
		Proxy:                 nil,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: header,
	}

	disableKeepAlives := false
	if proxyURL := strings.TrimSpace(opts.ProxyURL); proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, err
		}
		base.Proxy = http.ProxyURL(u)
		// proxy 模式强制每请求新连接（代理池轮换依赖该行为）。
		base.DisableKeepAlives = true
		disableKeepAlives = true
	}

	retry := opts.RetryMax
	if retry < 0 {
		retry = 0
	}
	if retry > maxRetry {
		retry = maxRetry
	}

	tr := &Transport{
		Base:              base,
		ua:                globalUA,
		Accept:            accept,
		RetryMax:          retry,
		DisableKeepAlives: disableKeepAlives,
	}
	return &http.Client{
		Transport: tr,
		Timeout:   total,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}, nil
}

type uaPool struct {
	mu  sync.Mutex
	rnd *rand.Rand
	uas []string
}

func (p *uaPool) random() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uas[p.rnd.Intn(len(p.uas))]
}

var globalUA = newUAPool()

func newUAPool() *uaPool {
	uas := []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 13_6) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36",
	}
	return &uaPool{
		rnd: rand.New(rand.NewSource(time.Now().UnixNano())),
		uas: uas,
	}
}
