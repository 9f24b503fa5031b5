package engines

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// whatweb命中的固定置信度
const whatwebConfidence = 75

// 信息型插件，不代表具体技术，跳过
var whatwebSkipPlugins = map[string]struct{}{
	"Title":            {},
	"IP":               {},
	"Country":          {},
	"Email":            {},
	"UncommonHeaders":  {},
	"HTTPServer":       {}, // Server头由本地签名源处理，避免重复弱证据
	"RedirectLocation": {},
}

// WhatWebSource 调用外部whatweb程序的检测源
type WhatWebSource struct {
	binPath string
}

// NewWhatWebSource 创建whatweb检测源，PATH中找不到程序则不可用
func NewWhatWebSource() *WhatWebSource {
	path, err := exec.LookPath("whatweb")
	if err != nil {
		return &WhatWebSource{}
	}
	return &WhatWebSource{binPath: path}
}

func (w *WhatWebSource) Name() string { return "whatweb" }

func (w *WhatWebSource) Available() bool { return w != nil && w.binPath != "" }

// NeedsPage whatweb自行发起请求，抓取失败时仍可运行
func (w *WhatWebSource) NeedsPage() bool { return false }

// whatwebRecord whatweb --log-json输出的单条记录
type whatwebRecord struct {
	Target     string                      `json:"target"`
	HTTPStatus int                         `json:"http_status"`
	Plugins    map[string]map[string][]any `json:"plugins"`
}

// Analyze 执行whatweb并把插件输出归一化为检测结果
func (w *WhatWebSource) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	if !w.Available() {
		return nil, ErrUnavailable
	}

	cmd := exec.CommandContext(ctx, w.binPath, "--log-json=-", "--quiet", "--aggression", "1", target)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("whatweb执行超时: %w", ctx.Err())
		}
		return nil, fmt.Errorf("whatweb执行失败: %v（%s）", err, strings.TrimSpace(stderr.String()))
	}

	results := parseWhatWebOutput(stdout.Bytes())
	logger.Debugf("whatweb识别到%d项技术：%s", len(results), target)
	return results, nil
}

// parseWhatWebOutput 解析whatweb的JSON输出
// 版本不同输出可能是JSON数组或逐行JSON对象，两种都接受
func parseWhatWebOutput(data []byte) []types.DetectionResult {
	var records []whatwebRecord
	if err := json.Unmarshal(data, &records); err != nil {
		for _, line := range bytes.Split(data, []byte("\n")) {
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			var rec whatwebRecord
			if err := json.Unmarshal(line, &rec); err == nil {
				records = append(records, rec)
			}
		}
	}

	var results []types.DetectionResult
	for _, rec := range records {
		for plugin, attrs := range rec.Plugins {
			if _, skip := whatwebSkipPlugins[plugin]; skip {
				continue
			}
			version := firstString(attrs["version"])
			matched := firstString(attrs["string"])
			if matched == "" {
				matched = plugin
			}
			results = append(results, types.DetectionResult{
				Name:       plugin,
				Versions:   versionList(version),
				Confidence: whatwebConfidence,
				Source:     "whatweb",
				Evidence: []types.Evidence{{
					Field:      "whatweb",
					Value:      matched,
					Version:    version,
					Confidence: whatwebConfidence,
				}},
			})
		}
	}
	return results
}

// firstString 取whatweb属性数组的首个字符串值
func firstString(values []any) string {
	for _, v := range values {
		switch t := v.(type) {
		case string:
			return t
		case float64:
			return fmt.Sprintf("%v", t)
		}
	}
	return ""
}
