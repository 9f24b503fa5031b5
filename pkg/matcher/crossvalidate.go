package matcher

import (
	"sort"
	"strings"

	"techprobe/pkg/signature"
	"techprobe/pkg/types"
)

// CrossSourceName 隐含关系推导结果的来源标识
const CrossSourceName = "cross_validation"

// 隐含技术相对其来源的置信度衰减
const impliedPenalty = 10

// CrossValidator 基于反向隐含关系表补全间接检出的技术
type CrossValidator struct {
	idx *signature.Index
}

// NewCrossValidator 创建隐含关系推导器
func NewCrossValidator(idx *signature.Index) *CrossValidator {
	return &CrossValidator{idx: idx}
}

// Expand 为已有检出补充其隐含的技术
// 直接检出优先，已存在的技术不重复产出；置信度为来源减10后封底0
func (v *CrossValidator) Expand(primary []types.DetectionResult, minConfidence int) []types.DetectionResult {
	detected := make(map[string]struct{}, len(primary))
	byName := make(map[string]types.DetectionResult, len(primary))
	for _, d := range primary {
		lower := strings.ToLower(d.Name)
		detected[lower] = struct{}{}
		byName[lower] = d
	}

	impliedBy := v.idx.ImpliedBy()
	// 被隐含技术名排序保证输出稳定
	names := make([]string, 0, len(impliedBy))
	for name := range impliedBy {
		names = append(names, name)
	}
	sort.Strings(names)

	var derived []types.DetectionResult
	for _, implied := range names {
		if _, already := detected[strings.ToLower(implied)]; already {
			continue
		}
		// 多个来源都检出时取置信度最高者
		var best *types.DetectionResult
		for _, implier := range impliedBy[implied] {
			if d, ok := byName[strings.ToLower(implier)]; ok {
				if best == nil || d.Confidence > best.Confidence {
					tmp := d
					best = &tmp
				}
			}
		}
		if best == nil {
			continue
		}

		confidence := best.Confidence - impliedPenalty
		if confidence < 0 {
			confidence = 0
		}
		if confidence < minConfidence {
			continue
		}
		derived = append(derived, types.DetectionResult{
			Name:       implied,
			Confidence: confidence,
			Category:   v.idx.CategoryOf(implied),
			Source:     CrossSourceName,
			Evidence: []types.Evidence{{
				Field:      "implies",
				Value:      "implied by " + best.Name,
				Confidence: confidence,
			}},
		})
	}
	return derived
}
