package matcher

import (
	"net/http"
	"sort"
	"strings"

	"techprobe/pkg/network"
	"techprobe/pkg/signature"
	"techprobe/pkg/types"
	"techprobe/pkg/utils/common"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// SourceName 本地签名匹配源的名称
const SourceName = "dataset"

// 证据文本截断长度
const evidenceLimit = 160

// Engine 基于签名索引的本地匹配引擎
// 索引只读，同一个Engine可被多次分析并发使用
type Engine struct {
	idx       *signature.Index
	validator *CrossValidator
}

// NewEngine 创建本地匹配引擎
func NewEngine(idx *signature.Index) *Engine {
	return &Engine{
		idx:       idx,
		validator: NewCrossValidator(idx),
	}
}

func (e *Engine) Name() string { return SourceName }

// Available 本地引擎总是可用
func (e *Engine) Available() bool { return true }

func (e *Engine) NeedsPage() bool { return true }

// accumulator 单项技术在一次分析中的累计状态
type accumulator struct {
	confidence int
	versions   []string
	evidence   []types.Evidence
}

// Analyze 对页面数据执行全字段匹配并补充隐含技术
func (e *Engine) Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error) {
	if page == nil {
		return nil, nil
	}

	acc := make(map[string]*accumulator)
	// 同一(技术,模式)对整次分析只累计一次
	seen := make(map[[2]string]struct{})

	hit := func(tech string, field signature.FieldKind, p *signature.Pattern, value, version string) {
		key := [2]string{tech, p.Raw}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}

		a := acc[tech]
		if a == nil {
			a = &accumulator{}
			acc[tech] = a
		}
		a.confidence += p.Confidence
		// 不同模式提取到的版本号全部保留，集合去重
		if version != "" {
			a.versions = common.RemoveDuplicates(append(a.versions, version))
		}
		a.evidence = append(a.evidence, types.Evidence{
			Field:      string(field),
			Pattern:    p.Raw,
			Value:      common.TruncateString(value, evidenceLimit),
			Version:    version,
			Confidence: p.Confidence,
		})
	}

	for _, kind := range signature.AllFieldKinds {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		e.matchField(kind, target, page, hit)
	}

	results := e.publish(acc, opts.MinConfidence)
	results = append(results, e.validator.Expand(results, opts.MinConfidence)...)
	logger.Debugf("本地签名匹配完成：%s 命中%d项技术", target, len(results))
	return results, nil
}

// matchField 对单个字段类别执行匹配
func (e *Engine) matchField(kind signature.FieldKind, target string, page *network.PageData, hit func(string, signature.FieldKind, *signature.Pattern, string, string)) {
	for _, ip := range e.idx.FieldPatterns(kind) {
		for _, ref := range ip.Refs {
			value, present := fieldValue(kind, ref.Key, target, page)
			if !present {
				continue
			}
			if matched, version := matchAny(ref.Pattern, value); matched {
				hit(ref.Technology, kind, ref.Pattern, firstHit(ref.Pattern, value), version)
			}
		}
	}
}

// fieldValue 取出某条模式引用对应的待匹配文本
// 第二个返回值表示字段/键是否存在，键值型模式在键缺失时直接跳过
func fieldValue(kind signature.FieldKind, key, target string, page *network.PageData) ([]string, bool) {
	switch kind {
	case signature.FieldHeaders:
		if key != "" {
			values := http.Header(page.Headers).Values(key)
			return values, len(values) > 0
		}
		return page.HeaderText, len(page.HeaderText) > 0
	case signature.FieldCookies:
		if key != "" {
			for name, value := range page.Cookies {
				if strings.EqualFold(name, key) {
					return []string{value}, true
				}
			}
			return nil, false
		}
		return page.CookieText, len(page.CookieText) > 0
	case signature.FieldMeta:
		if key != "" {
			value, ok := page.Meta[strings.ToLower(key)]
			return []string{value}, ok
		}
		lines := make([]string, 0, len(page.Meta))
		for name, content := range page.Meta {
			lines = append(lines, name+": "+content)
		}
		return lines, len(lines) > 0
	case signature.FieldScripts:
		return page.Scripts, len(page.Scripts) > 0
	case signature.FieldHTML:
		return []string{page.HTML}, page.HTML != ""
	case signature.FieldURL:
		u := page.FinalURL
		if u == "" {
			u = target
		}
		return []string{u}, u != ""
	}
	return nil, false
}

// matchAny 在候选文本中查找，命中即返回
func matchAny(p *signature.Pattern, values []string) (bool, string) {
	for _, v := range values {
		if ok, version := p.Match(v); ok {
			return true, version
		}
	}
	return false, ""
}

// firstHit 返回证据用的命中文本
func firstHit(p *signature.Pattern, values []string) string {
	for _, v := range values {
		if ok, _ := p.Match(v); ok {
			return v
		}
	}
	if len(values) > 0 {
		return values[0]
	}
	return ""
}

// publish 把累计状态整理为检测结果，封顶100并过滤阈值
func (e *Engine) publish(acc map[string]*accumulator, minConfidence int) []types.DetectionResult {
	// 技术名排序保证输出稳定
	names := make([]string, 0, len(acc))
	for name := range acc {
		names = append(names, name)
	}
	sort.Strings(names)

	var results []types.DetectionResult
	for _, name := range names {
		a := acc[name]
		confidence := a.confidence
		if confidence > 100 {
			confidence = 100
		}
		if confidence < minConfidence {
			continue
		}
		results = append(results, types.DetectionResult{
			Name:       name,
			Versions:   a.versions,
			Confidence: confidence,
			Category:   e.idx.CategoryOf(name),
			Source:     SourceName,
			Evidence:   a.evidence,
		})
	}
	return results
}
