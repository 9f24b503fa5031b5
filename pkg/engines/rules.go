package engines

import (
	"techprobe/pkg/network"
	"techprobe/pkg/rules"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// RulesSource 用户自定义CEL规则检测源
type RulesSource struct {
	evaluator *rules.Evaluator
}

// NewRulesSource 从规则文件创建检测源
// path为空或加载失败时返回不可用的源
func NewRulesSource(path string) *RulesSource {
	if path == "" {
		return &RulesSource{}
	}
	ruleList, err := rules.Load(path)
	if err != nil {
		logger.Warn("自定义规则加载失败：" + err.Error())
		return &RulesSource{}
	}
	ev, err := rules.NewEvaluator(ruleList)
	if err != nil {
		logger.Warn("自定义规则编译失败：" + err.Error())
		return &RulesSource{}
	}
	return &RulesSource{evaluator: ev}
}

func (r *RulesSource) Name() string { return "rules" }

func (r *RulesSource) Available() bool { return r != nil && r.evaluator.Size() > 0 }

func (r *RulesSource) NeedsPage() bool { return true }

// Analyze 对页面数据运行所有自定义规则
func (r *RulesSource) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	if !r.Available() {
		return nil, ErrUnavailable
	}
	if page == nil {
		return nil, nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	headers := make(map[string]string, len(page.Headers))
	for name, values := range page.Headers {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}

	hits := r.evaluator.Evaluate(rules.Input{
		URL:     page.URL,
		Status:  page.StatusCode,
		Title:   page.Title,
		Body:    page.HTML,
		Headers: headers,
		Cookies: page.Cookies,
	})

	var results []types.DetectionResult
	for _, rule := range hits {
		results = append(results, types.DetectionResult{
			Name:       rule.Name,
			Versions:   versionList(rule.Version),
			Confidence: rule.Confidence,
			Category:   rule.Category,
			Source:     r.Name(),
			Evidence: []types.Evidence{{
				Field:      "rules",
				Pattern:    rule.Expr,
				Value:      rule.Name,
				Version:    rule.Version,
				Confidence: rule.Confidence,
			}},
		})
	}
	logger.Debugf("自定义规则命中%d项技术：%s", len(results), target)
	return results, nil
}
