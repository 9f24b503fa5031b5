package engines

import (
	"fmt"
	"strings"

	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	wappalyzer "github.com/projectdiscovery/wappalyzergo"
	"golang.org/x/net/context"
)

// wappalyzergo库内置指纹命中的固定置信度
const wappalyzerConfidence = 80

// WappalyzerSource 基于wappalyzergo内置指纹库的检测源
type WappalyzerSource struct {
	client *wappalyzer.Wappalyze
}

// NewWappalyzerSource 创建wappalyzer检测源
// 初始化失败时返回不可用的源而非错误，由Registry统一跳过
func NewWappalyzerSource() *WappalyzerSource {
	client, err := wappalyzer.New()
	if err != nil {
		logger.Warn(fmt.Sprintf("初始化wappalyzer失败：%v", err))
		return &WappalyzerSource{}
	}
	return &WappalyzerSource{client: client}
}

func (w *WappalyzerSource) Name() string { return "wappalyzer" }

func (w *WappalyzerSource) Available() bool { return w != nil && w.client != nil }

func (w *WappalyzerSource) NeedsPage() bool { return true }

// Analyze 用页面响应头与响应体跑wappalyzergo指纹库
func (w *WappalyzerSource) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	if page == nil {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	apps := w.client.FingerprintWithInfo(page.Headers, []byte(page.HTML))

	var results []types.DetectionResult
	for app, info := range apps {
		// 指纹名可能携带":版本号"后缀
		name, version, _ := strings.Cut(app, ":")
		category := ""
		if len(info.Categories) > 0 {
			category = info.Categories[0]
		}
		results = append(results, types.DetectionResult{
			Name:       name,
			Versions:   versionList(version),
			Confidence: wappalyzerConfidence,
			Category:   category,
			Source:     w.Name(),
			Evidence: []types.Evidence{{
				Field:      "wappalyzer",
				Value:      app,
				Version:    version,
				Confidence: wappalyzerConfidence,
			}},
		})
	}
	logger.Debugf("wappalyzer识别到%d项技术：%s", len(results), target)
	return results, nil
}
