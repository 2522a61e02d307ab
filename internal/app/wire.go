package app

import (
	"fmt"

	"github.com/John-Robertt/linkpreview/internal/config"
	"github.com/John-Robertt/linkpreview/internal/infra/cache"
	"github.com/John-Robertt/linkpreview/internal/infra/httpx"
	"github.com/John-Robertt/linkpreview/internal/preview"
	"github.com/John-Robertt/linkpreview/internal/provider"
	"github.com/John-Robertt/linkpreview/internal/provider/hax"
	"github.com/John-Robertt/linkpreview/internal/provider/page"
)

// Components 是进程启动时组装一次的依赖集合。
type Components struct {
	Fetcher *preview.Fetcher
	// Page 是直接抓取页面的数据源；本地 metadata 接口复用它。
	Page page.Provider
	// Cache 为 Fetcher 使用的同一个缓存；未配置 cache_dir 时处于禁用状态。
	Cache *cache.Store
}

// Wire 按最终配置组装 Fetcher 及其数据源（进程内只调用一次）。
func Wire(eff config.EffectiveConfig) (Components, error) {
	opts := httpx.Options{ProxyURL: eff.ProxyURL, RetryMax: eff.RetryMax, Timeout: eff.Timeout}

	metaClient, err := httpx.NewMetadataClient(opts)
	if err != nil {
		return Components{}, fmt.Errorf("proxy.url 无效：%w", err)
	}
	pageClient, err := httpx.NewPageClient(opts)
	if err != nil {
		return Components{}, fmt.Errorf("proxy.url 无效：%w", err)
	}

	pg := page.Provider{Client: pageClient}
	reg, err := provider.NewRegistry(
		hax.Provider{BaseURL: eff.Endpoint, Client: metaClient},
		pg,
	)
	if err != nil {
		return Components{}, fmt.Errorf("初始化 provider registry 失败：%w", err)
	}

	store := cache.New(eff.CacheDir, eff.CacheTTL)
	return Components{
		Fetcher: &preview.Fetcher{
			Registry: reg,
			Sources:  eff.Sources,
			Cache:    store,
			Theme:    eff.Theme,
			Timeout:  eff.Timeout,
		},
		Page:  pg,
		Cache: store,
	}, nil
}
