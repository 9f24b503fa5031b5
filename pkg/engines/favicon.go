package engines

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"techprobe/pkg/network"
	"techprobe/pkg/types"
	"techprobe/pkg/utils/common"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// favicon哈希命中的固定置信度，图标哈希碰撞概率极低
const faviconConfidence = 90

// 页面中声明的图标链接
var faviconLinkRe = regexp.MustCompile(`(?i)<link[^>]+rel=["'][^"']*icon[^"']*["'][^>]*href=["']([^"']+)["']`)

// 常见图片格式的文件头
var imageMagic = []string{
	"00000100",   // ico
	"89504e47",   // png
	"47494638",   // gif
	"ffd8ff",     // jpeg
	"3c737667",   // svg "<svg"
	"3c3f786d6c", // svg "<?xml"
	"424d",       // bmp
	"52494646",   // webp
}

// 内置的已知图标哈希表，mmh3(标准base64编码) -> 技术名
var knownFaviconHashes = map[string]string{
	"81586312":    "Jenkins",
	"116323821":   "Spring Boot",
	"1278323681":  "GitLab",
	"-235701012":  "WordPress",
	"999357577":   "phpMyAdmin",
	"-1255347784": "Grafana",
	"1999357577":  "Kibana",
	"-305179312":  "Gitea",
}

// FaviconSource 基于favicon mmh3哈希的检测源
type FaviconSource struct {
	proxy   string
	timeout time.Duration
	hashes  map[string]string
}

// NewFaviconSource 创建favicon检测源
func NewFaviconSource(proxy string) *FaviconSource {
	return &FaviconSource{
		proxy:   proxy,
		timeout: 10 * time.Second,
		hashes:  knownFaviconHashes,
	}
}

func (f *FaviconSource) Name() string { return "favicon" }

func (f *FaviconSource) Available() bool { return f != nil }

// NeedsPage 页面可提供图标链接，但没有页面时也能回退到默认路径
func (f *FaviconSource) NeedsPage() bool { return false }

// Analyze 抓取站点图标并用mmh3哈希查表
func (f *FaviconSource) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	iconURL := f.resolveIconURL(target, page)
	if iconURL == "" {
		return nil, nil
	}

	data, err := f.fetchIcon(ctx, iconURL)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 || !isImageData(data) {
		logger.Debugf("favicon内容不是图片，跳过：%s", iconURL)
		return nil, nil
	}

	hash := common.Mmh3Hash32(common.StandBase64Encode(data))
	tech, ok := f.hashes[hash]
	if !ok {
		logger.Debugf("favicon哈希未命中：%s（%s）", hash, iconURL)
		return nil, nil
	}

	return []types.DetectionResult{{
		Name:       tech,
		Confidence: faviconConfidence,
		Source:     f.Name(),
		Evidence: []types.Evidence{{
			Field:      "favicon",
			Value:      "mmh3:" + hash,
			Confidence: faviconConfidence,
		}},
	}}, nil
}

// resolveIconURL 从页面声明中解析图标地址，没有则取默认/favicon.ico
func (f *FaviconSource) resolveIconURL(target string, page *network.PageData) string {
	base, err := url.Parse(target)
	if err != nil {
		return ""
	}

	if page != nil && page.HTML != "" {
		if m := faviconLinkRe.FindStringSubmatch(page.HTML); m != nil {
			href := strings.TrimSpace(m[1])
			// data:形式的图标直接内联
			if strings.HasPrefix(href, "data:") {
				return href
			}
			if ref, err := url.Parse(href); err == nil {
				return base.ResolveReference(ref).String()
			}
		}
	}
	base.Path = "/favicon.ico"
	base.RawQuery = ""
	return base.String()
}

// fetchIcon 获取图标内容，支持data:内联图标
func (f *FaviconSource) fetchIcon(ctx context.Context, iconURL string) ([]byte, error) {
	if strings.HasPrefix(iconURL, "data:") {
		idx := strings.Index(iconURL, "base64,")
		if idx < 0 {
			return nil, nil
		}
		data, err := base64.StdEncoding.DecodeString(iconURL[idx+len("base64,"):])
		if err != nil {
			return nil, fmt.Errorf("解码内联图标失败: %w", err)
		}
		return data, nil
	}

	data, status, err := network.SimpleGet(ctx, iconURL, f.proxy, f.timeout)
	if err != nil {
		return nil, fmt.Errorf("获取favicon失败: %w", err)
	}
	if status != 200 {
		return nil, nil
	}
	return data, nil
}

// isImageData 通过文件头判断是否为图片内容
func isImageData(data []byte) bool {
	limit := len(data)
	if limit > 8 {
		limit = 8
	}
	head := hex.EncodeToString(data[:limit])
	for _, magic := range imageMagic {
		if strings.HasPrefix(head, magic) {
			return true
		}
	}
	return false
}
