package network

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"techprobe/pkg/utils/common"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
	"golang.org/x/net/html"
)

// 字符集探测正则，优先取HTTP头，其次取meta声明
var (
	charsetHeaderRe = regexp.MustCompile(`(?i)charset=["']?([\w-]+)["']?`)
	charsetMetaRe   = regexp.MustCompile(`(?i)<meta\s+[^>]*charset=["']?([\w-]+)["']?`)
)

// PageData 单次抓取得到的页面数据，抓取一次后在所有检测源间共享
type PageData struct {
	URL        string              // 归一化后的请求URL
	FinalURL   string              // 跟随重定向后的最终URL
	StatusCode int                 // 响应状态码
	Headers    map[string][]string // 原始响应头
	HeaderText []string            // "键: 值"形式的响应头行
	Cookies    map[string]string   // Set-Cookie解析出的cookie名值对
	CookieText []string            // Set-Cookie原始行
	Meta       map[string]string   // meta标签 name/property(小写) -> content
	Scripts    []string            // script标签的src列表
	HTML       string              // UTF-8化后的响应体
	Title      string              // 页面标题
}

// Header 返回指定响应头的首个值（大小写不敏感）
func (p *PageData) Header(name string) string {
	if p == nil || p.Headers == nil {
		return ""
	}
	return http.Header(p.Headers).Get(name)
}

// FetchPage 抓取目标页面并解析为PageData
func FetchPage(ctx context.Context, target string, options OptionsRequest) (*PageData, error) {
	options.FollowRedirects = true
	resp, err := Get(ctx, target, options)
	if err != nil {
		return nil, fmt.Errorf("页面抓取失败: %w", err)
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	reader := io.LimitReader(resp.Body, MaxDefaultBody)
	bodyBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}

	body := decodeBody(bodyBytes, resp.Header.Get("Content-Type"))

	page := ParsePage(target, body, resp.Header)
	page.StatusCode = resp.StatusCode
	if resp.Request != nil && resp.Request.URL != nil {
		page.FinalURL = resp.Request.URL.String()
	}
	logger.Debugf("页面抓取完成：%s 状态码%d 标题%q", target, page.StatusCode, page.Title)
	return page, nil
}

// ParsePage 将响应体与响应头解析为PageData，不发起任何网络请求
func ParsePage(target string, body string, header http.Header) *PageData {
	page := &PageData{
		URL:     target,
		Headers: header,
		Cookies: make(map[string]string),
		Meta:    make(map[string]string),
		HTML:    body,
	}

	for name, values := range header {
		for _, v := range values {
			page.HeaderText = append(page.HeaderText, name+": "+v)
		}
	}

	// Set-Cookie行按分号取首段的名值对
	for _, line := range header.Values("Set-Cookie") {
		page.CookieText = append(page.CookieText, line)
		first := strings.TrimSpace(strings.SplitN(line, ";", 2)[0])
		if name, value, ok := strings.Cut(first, "="); ok {
			page.Cookies[strings.TrimSpace(name)] = strings.TrimSpace(value)
		}
	}

	parseHTML(page, body)
	return page
}

// parseHTML 用标记流解析title、meta与script，容忍残缺HTML
func parseHTML(page *PageData, body string) {
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	inTitle := false
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return
		case html.StartTagToken, html.SelfClosingTagToken:
			token := tokenizer.Token()
			switch token.Data {
			case "title":
				inTitle = page.Title == ""
			case "meta":
				var name, content string
				for _, attr := range token.Attr {
					switch strings.ToLower(attr.Key) {
					case "name", "property":
						name = strings.ToLower(attr.Val)
					case "content":
						content = attr.Val
					}
				}
				if name != "" {
					page.Meta[name] = content
				}
			case "script":
				for _, attr := range token.Attr {
					if strings.ToLower(attr.Key) == "src" && attr.Val != "" {
						page.Scripts = append(page.Scripts, attr.Val)
					}
				}
			}
		case html.EndTagToken:
			if tokenizer.Token().Data == "title" {
				inTitle = false
			}
		case html.TextToken:
			if inTitle {
				page.Title = cleanTitle(tokenizer.Token().Data)
				inTitle = false
			}
		}
	}
}

// decodeBody 按探测到的字符集把响应体转为UTF-8
func decodeBody(bodyBytes []byte, contentType string) string {
	body := string(bodyBytes)

	m := charsetHeaderRe.FindStringSubmatch(contentType)
	if len(m) < 2 {
		// HTTP头未声明字符集时从HTML内容中找
		m = charsetMetaRe.FindStringSubmatch(body)
	}
	if len(m) >= 2 {
		return common.Str2UTF8(body, m[1])
	}
	return body
}

// cleanTitle 移除空白字符并清理标题字符串
func cleanTitle(title string) string {
	// 移除制表符、换行符和回车符
	title = strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' || r == '\t' {
			return ' ' // 将这些字符替换为空格，而不是删除它们
		}
		return r
	}, title)

	// 将多个空格替换为单个空格
	space := false
	title = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			if space {
				return -1
			}
			space = true
			return ' '
		}
		space = false
		return r
	}, title)

	return strings.TrimSpace(title)
}
