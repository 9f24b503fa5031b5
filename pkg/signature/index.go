package signature

import (
	"fmt"
	"sort"

	"github.com/donnie4w/go-logger/logger"
)

// PatternRef 索引中的单条模式引用
type PatternRef struct {
	Technology string   // 规范技术名
	Key        string   // 键值型模式的键，空表示整行/整体模式
	Pattern    *Pattern // 编译后的模式
}

// Index 只读签名索引
// 构建一次后在所有分析间共享，无锁读取
type Index struct {
	store    *Store
	compiler *Compiler

	// 字段类别 -> 原始模式串 -> 引用列表
	fields map[FieldKind]map[string][]PatternRef
	// 字段内模式的稳定遍历顺序
	order map[FieldKind][]string
	// 被隐含技术 -> 隐含它的技术列表
	impliedBy map[string][]string
}

// NewIndex 基于仓库构建索引，所有模式在此处提前编译
func NewIndex(store *Store, compiler *Compiler) *Index {
	idx := &Index{
		store:     store,
		compiler:  compiler,
		fields:    make(map[FieldKind]map[string][]PatternRef),
		order:     make(map[FieldKind][]string),
		impliedBy: make(map[string][]string),
	}
	for _, kind := range AllFieldKinds {
		idx.fields[kind] = make(map[string][]PatternRef)
	}

	// 技术名排序保证索引构建结果稳定
	names := make([]string, 0, len(store.Technologies))
	for name := range store.Technologies {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		tech := store.Technologies[name]
		for kind, pats := range tech.Patterns {
			for _, kp := range pats {
				ref := PatternRef{
					Technology: name,
					Key:        kp.Key,
					Pattern:    compiler.Compile(kp.Pattern),
				}
				if _, seen := idx.fields[kind][kp.Pattern]; !seen {
					idx.order[kind] = append(idx.order[kind], kp.Pattern)
				}
				idx.fields[kind][kp.Pattern] = append(idx.fields[kind][kp.Pattern], ref)
				total++
			}
		}
		for _, implied := range tech.Implies {
			canon := store.CanonicalName(stripImplySuffix(implied))
			idx.impliedBy[canon] = append(idx.impliedBy[canon], name)
		}
	}

	logger.Info(fmt.Sprintf("签名索引构建完成：%d项技术，%d条模式", len(names), total))
	return idx
}

// IndexedPattern 某字段类别下的一条模式及其引用
type IndexedPattern struct {
	Raw  string
	Refs []PatternRef
}

// FieldPatterns 返回某字段类别下的所有模式，按稳定顺序
func (idx *Index) FieldPatterns(kind FieldKind) []IndexedPattern {
	out := make([]IndexedPattern, 0, len(idx.order[kind]))
	for _, raw := range idx.order[kind] {
		out = append(out, IndexedPattern{Raw: raw, Refs: idx.fields[kind][raw]})
	}
	return out
}

// ImpliedBy 返回被隐含技术到隐含者的反向关系表
func (idx *Index) ImpliedBy() map[string][]string {
	return idx.impliedBy
}

// Technology 按名称查找技术条目（大小写不敏感）
func (idx *Index) Technology(name string) *Technology {
	return idx.store.Technologies[idx.store.CanonicalName(name)]
}

// CategoryOf 返回技术的首个分类名称
func (idx *Index) CategoryOf(name string) string {
	return idx.store.CategoryName(idx.Technology(name))
}

// stripImplySuffix implies条目同样可能携带confidence后缀，关系表只取名称
func stripImplySuffix(name string) string {
	if m := confidenceSuffixRe.FindStringIndex(name); m != nil {
		return name[:m[0]]
	}
	return name
}
