package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/John-Robertt/linkpreview/internal/domain"
)

const (
	// ErrCodeNotFound 表示显式指定的配置文件不存在。
	ErrCodeNotFound = "config_not_found"
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

const (
	DefaultEndpoint    = "https://open-apis.hax.cloud"
	DefaultTimeoutMS   = 5000
	DefaultListen      = "127.0.0.1:8080"
	DefaultLogLevel    = "info"
	DefaultConcurrency = 4
	DefaultCacheTTLS   = 3600
	DefaultCachePrune  = "@every 30m"
)

// 配置文件名（按顺序查找，只取第一个存在的）。
var fileNames = []string{"linkpreview.json", "linkpreview.yaml", "linkpreview.yml"}

// CLIArgs 保留“是否显式指定”的信息，保证 CLI 可以覆盖配置文件中的任意值。
type CLIArgs struct {
	// ConfigPath 非空时必须存在；为空时在 cwd 下按 fileNames 查找（可选）。
	ConfigPath string

	Endpoint    string
	EndpointSet bool

	TimeoutMS  int
	TimeoutSet bool

	Sources    []string
	SourcesSet bool

	Listen    string
	ListenSet bool

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 linkpreview.json / linkpreview.yaml。
type FileConfig struct {
	Endpoint    string       `json:"endpoint" yaml:"endpoint"`
	TimeoutMS   int          `json:"timeout_ms" yaml:"timeout_ms"`
	Sources     []string     `json:"sources" yaml:"sources"`
	Proxy       *ProxyConfig `json:"proxy" yaml:"proxy"`
	RetryMax    int          `json:"retry_max" yaml:"retry_max"`
	Theme       *ThemeConfig `json:"theme" yaml:"theme"`
	CacheDir    string       `json:"cache_dir" yaml:"cache_dir"`
	CacheTTLS   *int         `json:"cache_ttl_s" yaml:"cache_ttl_s"`
	CachePrune  string       `json:"cache_prune" yaml:"cache_prune"`
	Listen      string       `json:"listen" yaml:"listen"`
	LogLevel    string       `json:"log_level" yaml:"log_level"`
	Concurrency int          `json:"concurrency" yaml:"concurrency"`
}

type ProxyConfig struct {
	URL string `json:"url" yaml:"url"`
}

type ThemeConfig struct {
	Primary string `json:"primary" yaml:"primary"`
	Default string `json:"default" yaml:"default"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// File 是实际读取的配置文件；未读取任何文件时为空。
	File string

	Endpoint    string
	Timeout     time.Duration
	Sources     []string
	ProxyURL    string
	RetryMax    int
	Theme       domain.Theme
	CacheDir    string
	CacheTTL    time.Duration
	// CachePrune 是 serve 模式下清理过期缓存的 cron 表达式。
	CachePrune  string
	Listen      string
	LogLevel    zerolog.Level
	Concurrency int
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置文件 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置文件 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 发现并读取配置文件，然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI > 配置文件 > 内置默认值。
// cache_dir 的相对路径以配置文件所在目录为基准（无配置文件时以 cwd 为基准）。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	if p := strings.TrimSpace(cli.ConfigPath); p != "" {
		cfgPath := absCleanFrom(cwdAbs, p)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if !exists {
			return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
		}
		return merge(filepath.Dir(cfgPath), cli, fc, cfgPath)
	}

	for _, name := range fileNames {
		cfgPath := filepath.Join(cwdAbs, name)
		fc, exists, err := readFileConfig(cfgPath)
		if err != nil {
			return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
		}
		if exists {
			return merge(cwdAbs, cli, fc, cfgPath)
		}
	}
	return merge(cwdAbs, cli, FileConfig{}, "")
}

func merge(baseDir string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(err error) (EffectiveConfig, error) {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	endpoint := DefaultEndpoint
	if cli.EndpointSet {
		endpoint = cli.Endpoint
	} else if strings.TrimSpace(fc.Endpoint) != "" {
		endpoint = fc.Endpoint
	}
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if err := validateHTTPURL("endpoint", endpoint); err != nil {
		return invalid(err)
	}

	timeoutMS := DefaultTimeoutMS
	if cli.TimeoutSet {
		timeoutMS = cli.TimeoutMS
	} else if fc.TimeoutMS != 0 {
		timeoutMS = fc.TimeoutMS
	}
	// 范围 [100, 60000]；超出截断。
	timeoutMS = clamp(timeoutMS, 100, 60000)

	sources := []string{"hax"}
	if cli.SourcesSet {
		sources = cli.Sources
	} else if len(fc.Sources) > 0 {
		sources = fc.Sources
	}
	sources, err := normSources(sources)
	if err != nil {
		return invalid(err)
	}

	proxyURL := ""
	if fc.Proxy != nil {
		proxyURL = strings.TrimSpace(fc.Proxy.URL)
	}
	if proxyURL != "" {
		if _, err := url.Parse(proxyURL); err != nil {
			return invalid(fmt.Errorf("proxy.url 无效：%w", err))
		}
	}

	theme := domain.DefaultTheme()
	if fc.Theme != nil {
		if v := strings.TrimSpace(fc.Theme.Primary); v != "" {
			theme.Primary = v
		}
		if v := strings.TrimSpace(fc.Theme.Default); v != "" {
			theme.Other = v
		}
	}

	cacheDir := ""
	if d := strings.TrimSpace(fc.CacheDir); d != "" {
		cacheDir = absCleanFrom(baseDir, d)
	}
	ttlS := DefaultCacheTTLS
	if fc.CacheTTLS != nil {
		ttlS = *fc.CacheTTLS
	}
	if ttlS < 0 {
		return invalid(fmt.Errorf("cache_ttl_s 不能为负数：%d", ttlS))
	}

	prune := strings.TrimSpace(fc.CachePrune)
	if prune == "" {
		prune = DefaultCachePrune
	}
	if _, err := cron.ParseStandard(prune); err != nil {
		return invalid(fmt.Errorf("cache_prune 无效：%w", err))
	}

	listen := DefaultListen
	if cli.ListenSet {
		listen = cli.Listen
	} else if strings.TrimSpace(fc.Listen) != "" {
		listen = fc.Listen
	}
	listen = strings.TrimSpace(listen)
	if listen == "" {
		return invalid(fmt.Errorf("listen 不能为空"))
	}

	levelName := DefaultLogLevel
	if cli.LogLevelSet {
		levelName = cli.LogLevel
	} else if strings.TrimSpace(fc.LogLevel) != "" {
		levelName = fc.LogLevel
	}
	levelName = strings.ToLower(strings.TrimSpace(levelName))
	level, err := zerolog.ParseLevel(levelName)
	if err != nil || levelName == "" {
		return invalid(fmt.Errorf("log_level 无效：%q", levelName))
	}

	concurrency := fc.Concurrency
	if concurrency == 0 {
		concurrency = DefaultConcurrency
	}

	return EffectiveConfig{
		File:        cfgPath,
		Endpoint:    endpoint,
		Timeout:     time.Duration(timeoutMS) * time.Millisecond,
		Sources:     sources,
		ProxyURL:    proxyURL,
		RetryMax:    clamp(fc.RetryMax, 0, 5),
		Theme:       theme,
		CacheDir:    cacheDir,
		CacheTTL:    time.Duration(ttlS) * time.Second,
		CachePrune:  prune,
		Listen:      listen,
		LogLevel:    level,
		Concurrency: clamp(concurrency, 1, 32),
	}, nil
}

func normSources(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		switch s {
		case "hax", "page":
		case "":
			continue
		default:
			return nil, fmt.Errorf("source 只能是 hax 或 page，实际是 %q", s)
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("sources 不能为空")
	}
	return out, nil
}

func validateHTTPURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s 无效：%q", field, raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s 必须是 http/https：%q", field, raw)
	}
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析配置文件（按扩展名选择 JSON 或 YAML）。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &fc)
	default:
		err = json.Unmarshal(b, &fc)
	}
	if err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}
