package page

import (
	"bytes"
	"context"
	"errors"
	"html"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dyatlov/go-opengraph/opengraph"
	"github.com/microcosm-cc/bluemonday"

	"github.com/John-Robertt/linkpreview/internal/domain"
	providerx "github.com/John-Robertt/linkpreview/internal/provider"
)

// Provider 直接抓取目标页面，从 OpenGraph 与常规 <head> 标签中提取元数据。
//
// 提取结果使用与 metadata 服务相同的键（og:title/title/url/...），
// 因此本地 serve 暴露的 metadata 接口与远端服务可以互换。
type Provider struct {
	Client *http.Client
}

// textPolicy 去掉文本字段里残留的标签（og:title 等属性值里偶尔会带 HTML）。
var textPolicy = bluemonday.StrictPolicy()

func (Provider) Name() string { return "page" }

func (p Provider) Fetch(ctx context.Context, targetURL string) ([]byte, error) {
	if p.Client == nil {
		return nil, errors.New("http client 不能为空")
	}
	u, err := url.Parse(strings.TrimSpace(targetURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("只支持 http/https：" + targetURL)
	}
	return providerx.GetBody(ctx, p.Client, u.String())
}

// Parse 从 HTML 中提取元数据；所有相对地址都以 targetURL 为基准解析成绝对地址。
func (Provider) Parse(targetURL string, body []byte) (domain.Metadata, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("html 为空")
	}

	og := opengraph.NewOpenGraph()
	if err := og.ProcessHTML(bytes.NewReader(body)); err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	m := domain.Metadata{}
	set := func(k, v string) {
		if v = normSpace(v); v != "" {
			m[k] = v
		}
	}
	setText := func(k, v string) {
		set(k, html.UnescapeString(textPolicy.Sanitize(v)))
	}

	setText(domain.KeyOGTitle, og.Title)
	setText(domain.KeyTitle, doc.Find("head title").First().Text())
	setText(domain.KeyOGDescription, og.Description)
	setText(domain.KeyDescription, metaContent(doc, `meta[name="description"]`))
	set(domain.KeyThemeColor, metaContent(doc, `meta[name="theme-color"]`))

	if len(og.Images) > 0 && og.Images[0] != nil {
		set(domain.KeyOGImage, resolveURL(targetURL, og.Images[0].URL))
	}
	if href, ok := doc.Find(`link[rel="image_src"]`).First().Attr("href"); ok {
		set(domain.KeyImage, resolveURL(targetURL, href))
	}
	if logo := metaContent(doc, `meta[itemprop="logo"]`); logo != "" {
		set(domain.KeyLogo, resolveURL(targetURL, logo))
	}

	canonical := ""
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		canonical = href
	}
	if strings.TrimSpace(canonical) == "" {
		canonical = og.URL
	}
	if strings.TrimSpace(canonical) != "" {
		set(domain.KeyURL, resolveURL(targetURL, canonical))
	}

	return m, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	v, _ := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(v)
}

func resolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		return "https:" + href
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	ru, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(ru).String()
}

func normSpace(s string) string { return strings.Join(strings.Fields(s), " ") }
