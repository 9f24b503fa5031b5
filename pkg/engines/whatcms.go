package engines

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// WhatCMS API密钥的环境变量名
const WhatCMSKeyEnv = "WHATCMS_API_KEY"

const whatcmsEndpoint = "https://whatcms.org/API/Tech"

// WhatCMSSource 调用whatcms.org接口的检测源
type WhatCMSSource struct {
	apiKey  string
	proxy   string
	timeout time.Duration
}

// NewWhatCMSSource 创建whatcms检测源，环境变量缺失时不可用
func NewWhatCMSSource(proxy string) *WhatCMSSource {
	return &WhatCMSSource{
		apiKey:  os.Getenv(WhatCMSKeyEnv),
		proxy:   proxy,
		timeout: 15 * time.Second,
	}
}

func (w *WhatCMSSource) Name() string { return "whatcms" }

func (w *WhatCMSSource) Available() bool { return w != nil && w.apiKey != "" }

// NeedsPage 接口自行访问目标，抓取失败时仍可运行
func (w *WhatCMSSource) NeedsPage() bool { return false }

// whatcmsResponse whatcms接口的响应结构
type whatcmsResponse struct {
	Result struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"result"`
	Results []struct {
		Name       string   `json:"name"`
		Version    string   `json:"version"`
		Confidence string   `json:"confidence"`
		Categories []string `json:"categories"`
	} `json:"results"`
}

// Analyze 查询whatcms接口并归一化结果
func (w *WhatCMSSource) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	if !w.Available() {
		return nil, ErrUnavailable
	}

	query := url.Values{}
	query.Set("key", w.apiKey)
	query.Set("url", target)

	body, status, err := network.SimpleGet(ctx, whatcmsEndpoint+"?"+query.Encode(), w.proxy, w.timeout)
	if err != nil {
		return nil, fmt.Errorf("whatcms请求失败: %w", err)
	}
	if status != 200 {
		return nil, fmt.Errorf("whatcms返回状态码%d", status)
	}

	var resp whatcmsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("whatcms响应解析失败: %w", err)
	}
	if resp.Result.Code != 200 {
		return nil, fmt.Errorf("whatcms接口错误：%s（code=%d）", resp.Result.Msg, resp.Result.Code)
	}

	var results []types.DetectionResult
	for _, item := range resp.Results {
		confidence := parseWhatCMSConfidence(item.Confidence)
		category := ""
		if len(item.Categories) > 0 {
			category = item.Categories[0]
		}
		results = append(results, types.DetectionResult{
			Name:       item.Name,
			Versions:   versionList(item.Version),
			Confidence: confidence,
			Category:   category,
			Source:     w.Name(),
			Evidence: []types.Evidence{{
				Field:      "whatcms",
				Value:      item.Name,
				Version:    item.Version,
				Confidence: confidence,
			}},
		})
	}
	logger.Debugf("whatcms识别到%d项技术：%s", len(results), target)
	return results, nil
}

// parseWhatCMSConfidence 接口置信度为百分比字符串，异常时取默认值
func parseWhatCMSConfidence(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 70
	}
	if n > 100 {
		n = 100
	}
	return n
}
