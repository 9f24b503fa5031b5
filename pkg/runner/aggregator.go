package runner

import (
	"sort"
	"strings"

	"techprobe/pkg/types"
	"techprobe/pkg/utils/common"
)

// Aggregate 把各检测源的原始结果聚合为最终技术列表
// 去重按名称大小写不敏感，保留高置信度为主记录并合并证据与来源；
// 过滤低于阈值的结果，按置信度稳定降序排序并截断到上限
func Aggregate(raw []types.DetectionResult, opts types.AnalyzeOptions) ([]types.DetectionResult, map[string]int, types.ConfidenceBuckets) {
	// 去重前按来源统计
	breakdown := make(map[string]int)
	for _, r := range raw {
		breakdown[r.Source]++
	}

	merged := dedup(raw)

	// 阈值过滤
	filtered := merged[:0]
	for _, r := range merged {
		if r.Confidence >= opts.MinConfidence {
			filtered = append(filtered, r)
		}
	}

	// 稳定排序保证同分结果保持插入顺序
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Confidence > filtered[j].Confidence
	})

	if opts.MaxResults > 0 && len(filtered) > opts.MaxResults {
		filtered = filtered[:opts.MaxResults]
	}

	return filtered, breakdown, histogram(filtered)
}

// dedup 名称大小写不敏感去重
// 高置信度记录为主，证据串联，来源与版本集合取并集
func dedup(raw []types.DetectionResult) []types.DetectionResult {
	index := make(map[string]int, len(raw))
	var out []types.DetectionResult

	for _, r := range raw {
		if r.Sources == nil {
			r.Sources = []string{r.Source}
		}
		lower := strings.ToLower(r.Name)
		at, exists := index[lower]
		if !exists {
			index[lower] = len(out)
			out = append(out, r)
			continue
		}

		cur := out[at]
		if r.Confidence > cur.Confidence {
			// 新记录为主，继承已有证据
			r.Evidence = append(cur.Evidence, r.Evidence...)
			r.Sources = common.RemoveDuplicates(append(cur.Sources, r.Sources...))
			r.Versions = common.RemoveDuplicates(append(cur.Versions, r.Versions...))
			if r.Category == "" {
				r.Category = cur.Category
			}
			out[at] = r
			continue
		}

		cur.Evidence = append(cur.Evidence, r.Evidence...)
		cur.Sources = common.RemoveDuplicates(append(cur.Sources, r.Sources...))
		cur.Versions = common.RemoveDuplicates(append(cur.Versions, r.Versions...))
		if cur.Category == "" {
			cur.Category = r.Category
		}
		out[at] = cur
	}
	return out
}

// histogram 置信度三段分布：高>=80，中50-79，低<50
func histogram(results []types.DetectionResult) types.ConfidenceBuckets {
	var b types.ConfidenceBuckets
	for _, r := range results {
		switch {
		case r.Confidence >= 80:
			b.High++
		case r.Confidence >= 50:
			b.Medium++
		default:
			b.Low++
		}
	}
	return b
}
