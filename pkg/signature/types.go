package signature

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// FieldKind 页面数据的字段类别
type FieldKind string

const (
	FieldHeaders FieldKind = "headers"
	FieldCookies FieldKind = "cookies"
	FieldMeta    FieldKind = "meta"
	FieldScripts FieldKind = "scripts"
	FieldHTML    FieldKind = "html"
	FieldURL     FieldKind = "url"
)

// AllFieldKinds 所有字段类别，按匹配顺序
var AllFieldKinds = []FieldKind{FieldHeaders, FieldCookies, FieldMeta, FieldScripts, FieldHTML, FieldURL}

// KeyedPattern 归一化后的单条模式
// Key非空时表示键值对模式（如header名对应的值模式）
// Key为空时模式作用于"key: value"拼接文本或字段整体
type KeyedPattern struct {
	Key     string
	Pattern string
}

// Technology 归一化后的技术签名
type Technology struct {
	Name        string
	Cats        []int
	Website     string
	Description string
	SaaS        bool
	OSS         bool
	Implies     []string
	Patterns    map[FieldKind][]KeyedPattern
	Datasets    []string // 贡献过该条目的数据集，按加载顺序

	// 布尔字段是否在数据集中显式出现，合并时缺省值不覆盖
	saasSet bool
	ossSet  bool
}

// rawTechnology 数据集中的原始技术条目
// headers/cookies/meta可为对象或数组，scripts/html/url可为数组或单个字符串
type rawTechnology struct {
	Cats        json.RawMessage `json:"cats"`
	Headers     json.RawMessage `json:"headers"`
	Cookies     json.RawMessage `json:"cookies"`
	Meta        json.RawMessage `json:"meta"`
	Scripts     json.RawMessage `json:"scripts"`
	HTML        json.RawMessage `json:"html"`
	URL         json.RawMessage `json:"url"`
	Website     string          `json:"website"`
	Description string          `json:"description"`
	SaaS        *bool           `json:"saas"`
	OSS         *bool           `json:"oss"`
	Implies     json.RawMessage `json:"implies"`
}

// datasetFile 数据集文件的顶层结构
type datasetFile struct {
	Categories   map[string]string        `json:"categories"`
	Technologies map[string]rawTechnology `json:"technologies"`
}

// normalize 将原始条目归一化为Technology
func (r *rawTechnology) normalize(name string) (*Technology, error) {
	tech := &Technology{
		Name:        name,
		Website:     r.Website,
		Description: r.Description,
		Patterns:    make(map[FieldKind][]KeyedPattern),
	}
	if r.SaaS != nil {
		tech.SaaS = *r.SaaS
		tech.saasSet = true
	}
	if r.OSS != nil {
		tech.OSS = *r.OSS
		tech.ossSet = true
	}

	cats, err := parseCats(r.Cats)
	if err != nil {
		return nil, fmt.Errorf("cats字段格式错误: %w", err)
	}
	tech.Cats = cats

	implies, err := parseStringList(r.Implies)
	if err != nil {
		return nil, fmt.Errorf("implies字段格式错误: %w", err)
	}
	tech.Implies = implies

	// 键值型字段，对象与数组两种形态都要接受
	for kind, raw := range map[FieldKind]json.RawMessage{
		FieldHeaders: r.Headers,
		FieldCookies: r.Cookies,
		FieldMeta:    r.Meta,
	} {
		pats, err := parseKeyed(raw)
		if err != nil {
			return nil, fmt.Errorf("%s字段格式错误: %w", kind, err)
		}
		if len(pats) > 0 {
			tech.Patterns[kind] = pats
		}
	}

	// 列表型字段
	for kind, raw := range map[FieldKind]json.RawMessage{
		FieldScripts: r.Scripts,
		FieldHTML:    r.HTML,
		FieldURL:     r.URL,
	} {
		items, err := parseStringList(raw)
		if err != nil {
			return nil, fmt.Errorf("%s字段格式错误: %w", kind, err)
		}
		for _, it := range items {
			tech.Patterns[kind] = append(tech.Patterns[kind], KeyedPattern{Pattern: it})
		}
	}

	return tech, nil
}

// parseCats 解析分类ID列表，数字与字符串混写都接受
func parseCats(raw json.RawMessage) ([]int, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		// 单个数字的简写
		var single int
		if err2 := json.Unmarshal(raw, &single); err2 == nil {
			return []int{single}, nil
		}
		return nil, err
	}
	cats := make([]int, 0, len(items))
	for _, it := range items {
		var n int
		if err := json.Unmarshal(it, &n); err == nil {
			cats = append(cats, n)
			continue
		}
		var s string
		if err := json.Unmarshal(it, &s); err != nil {
			return nil, fmt.Errorf("无法解析分类ID: %s", string(it))
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("无法解析分类ID: %s", s)
		}
		cats = append(cats, n)
	}
	return cats, nil
}

// parseStringList 解析字符串或字符串数组
func parseStringList(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("既不是字符串也不是字符串数组: %s", string(raw))
	}
	return []string{single}, nil
}

// parseKeyed 解析键值型模式字段
// 对象形态 {"键": "值模式"} 归一化为Key+Pattern
// 数组形态 ["键: 值模式"] 保留整行，Key留空
func parseKeyed(raw json.RawMessage) ([]KeyedPattern, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err == nil {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		// map遍历乱序，排序保证归一化结果稳定
		sort.Strings(keys)
		var pats []KeyedPattern
		for _, k := range keys {
			vals, err := parseStringList(obj[k])
			if err != nil {
				return nil, fmt.Errorf("键%q的值格式错误: %w", k, err)
			}
			if len(vals) == 0 {
				// 空值表示仅匹配键存在
				pats = append(pats, KeyedPattern{Key: k})
				continue
			}
			for _, v := range vals {
				pats = append(pats, KeyedPattern{Key: k, Pattern: v})
			}
		}
		return pats, nil
	}
	items, err := parseStringList(raw)
	if err != nil {
		return nil, err
	}
	pats := make([]KeyedPattern, 0, len(items))
	for _, it := range items {
		pats = append(pats, KeyedPattern{Pattern: it})
	}
	return pats, nil
}
