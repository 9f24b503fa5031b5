package signature

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/donnie4w/go-logger/logger"

	"techprobe/pkg/utils/common"
)

// ErrNoDatasets 所有数据集均加载失败
var ErrNoDatasets = errors.New("没有任何签名数据集加载成功")

// FieldOverride 重名合并时被覆盖的单个标量字段
type FieldOverride struct {
	Field string // 被覆盖的字段
	Old   string // 覆盖前的值
	New   string // 覆盖后的值
}

// Conflict 同名技术出现在多个数据集时的合并记录
// 每次重名合并记录一条，无论标量字段是否实际变化
type Conflict struct {
	Technology      string          // 技术名称
	PreviousDataset string          // 此前贡献该条目的最近数据集
	Dataset         string          // 本次合并的数据集
	Overrides       []FieldOverride // 被覆盖的标量字段明细，可为空
}

// Dataset 待加载的单个数据集
// Priority大的后加载，标量字段以后者为准
type Dataset struct {
	Name     string
	Data     []byte
	Priority int
}

// Store 签名数据仓库
// 加载完成后只读，不持有锁
type Store struct {
	Categories   map[int]string
	Technologies map[string]*Technology
	Conflicts    []Conflict

	canonical map[string]string // 小写名 -> 规范名
	loaded    int               // 成功加载的数据集数量
	attempted int               // 尝试加载的数据集数量
}

// NewStore 创建空的签名仓库
func NewStore() *Store {
	return &Store{
		Categories:   make(map[int]string),
		Technologies: make(map[string]*Technology),
		canonical:    make(map[string]string),
	}
}

// Load 按Priority升序加载一组数据集
// 单个数据集失败只记录日志，全部失败才返回ErrNoDatasets
func (s *Store) Load(datasets []Dataset) error {
	ordered := make([]Dataset, len(datasets))
	copy(ordered, datasets)
	// 插入排序保持同优先级数据集的相对顺序
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].Priority > ordered[j].Priority; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	for _, ds := range ordered {
		if err := s.LoadDataset(ds.Name, ds.Data); err != nil {
			logger.Warn(fmt.Sprintf("数据集 %s 加载失败：%v", ds.Name, err))
		}
	}
	if s.loaded == 0 {
		return fmt.Errorf("%w（尝试%d个）", ErrNoDatasets, s.attempted)
	}
	logger.Info(fmt.Sprintf("签名数据集加载完成：%d/%d个文件，共%d项技术",
		s.loaded, s.attempted, len(s.Technologies)))
	return nil
}

// LoadDir 从目录加载外部数据集，文件名升序作为优先级
// basePriority为目录内第一个文件的优先级起点
func (s *Store) LoadDir(path string, basePriority int) error {
	files, err := common.ListJSONFiles(path)
	if err != nil {
		return fmt.Errorf("遍历数据集目录出错: %w", err)
	}
	var datasets []Dataset
	for i, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			logger.Warn(fmt.Sprintf("读取数据集 %s 失败：%v", f, err))
			s.attempted++
			continue
		}
		datasets = append(datasets, Dataset{Name: f, Data: data, Priority: basePriority + i})
	}
	return s.Load(datasets)
}

// LoadDataset 加载单个数据集并合并进仓库
func (s *Store) LoadDataset(name string, data []byte) error {
	s.attempted++

	var file datasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("JSON解析失败: %w", err)
	}

	// 分类表直接覆盖，后加载的数据集优先
	for id, catName := range file.Categories {
		n, err := parseCatID(id)
		if err != nil {
			logger.Debugf("数据集 %s 分类ID %q 无效，已跳过", name, id)
			continue
		}
		s.Categories[n] = catName
	}

	count := 0
	for techName, raw := range file.Technologies {
		tech, err := raw.normalize(techName)
		if err != nil {
			// 单项异常不影响同文件其他条目
			logger.Debugf("数据集 %s 中 %s 归一化失败：%v", name, techName, err)
			continue
		}
		s.merge(tech, name)
		count++
	}
	if count == 0 {
		return fmt.Errorf("没有可用的技术条目")
	}

	s.loaded++
	logger.Debugf("数据集 %s 加载了 %d 项技术", name, count)
	return nil
}

// merge 将新条目并入仓库
// 重名合并每次记录一条冲突；标量字段后者覆盖，列表与模式并集去重
func (s *Store) merge(in *Technology, dataset string) {
	lower := strings.ToLower(in.Name)
	canon, exists := s.canonical[lower]
	if !exists {
		in.Datasets = []string{dataset}
		s.canonical[lower] = in.Name
		s.Technologies[in.Name] = in
		return
	}

	cur := s.Technologies[canon]
	conflict := Conflict{
		Technology: canon,
		Dataset:    dataset,
	}
	if len(cur.Datasets) > 0 {
		conflict.PreviousDataset = cur.Datasets[len(cur.Datasets)-1]
	}
	override := func(field, old, val string) {
		conflict.Overrides = append(conflict.Overrides, FieldOverride{Field: field, Old: old, New: val})
		logger.Debugf("签名冲突：%s.%s 由 %q 覆盖为 %q（来自 %s）", canon, field, old, val, dataset)
	}

	if in.Website != "" && in.Website != cur.Website {
		if cur.Website != "" {
			override("website", cur.Website, in.Website)
		}
		cur.Website = in.Website
	}
	if in.Description != "" && in.Description != cur.Description {
		if cur.Description != "" {
			override("description", cur.Description, in.Description)
		}
		cur.Description = in.Description
	}
	if in.saasSet {
		if cur.saasSet && in.SaaS != cur.SaaS {
			override("saas", fmt.Sprintf("%v", cur.SaaS), fmt.Sprintf("%v", in.SaaS))
		}
		cur.SaaS = in.SaaS
		cur.saasSet = true
	}
	if in.ossSet {
		if cur.ossSet && in.OSS != cur.OSS {
			override("oss", fmt.Sprintf("%v", cur.OSS), fmt.Sprintf("%v", in.OSS))
		}
		cur.OSS = in.OSS
		cur.ossSet = true
	}

	cur.Cats = unionInts(cur.Cats, in.Cats)
	cur.Implies = common.RemoveDuplicates(append(cur.Implies, in.Implies...))

	for kind, pats := range in.Patterns {
		cur.Patterns[kind] = unionPatterns(cur.Patterns[kind], pats)
	}

	cur.Datasets = common.RemoveDuplicates(append(cur.Datasets, dataset))
	s.Conflicts = append(s.Conflicts, conflict)
	logger.Debugf("签名重名合并：%s（%s -> %s）", canon, conflict.PreviousDataset, dataset)
}

// CanonicalName 返回技术的规范名称，未知时返回输入本身
func (s *Store) CanonicalName(name string) string {
	if canon, ok := s.canonical[strings.ToLower(name)]; ok {
		return canon
	}
	return name
}

// CategoryName 根据技术条目返回其首个分类名称
func (s *Store) CategoryName(tech *Technology) string {
	if tech == nil || len(tech.Cats) == 0 {
		return ""
	}
	return s.Categories[tech.Cats[0]]
}

func parseCatID(id string) (int, error) {
	var n int
	_, err := fmt.Sscanf(id, "%d", &n)
	return n, err
}

func unionInts(a, b []int) []int {
	seen := make(map[int]struct{}, len(a)+len(b))
	out := make([]int, 0, len(a)+len(b))
	for _, v := range append(a, b...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func unionPatterns(a, b []KeyedPattern) []KeyedPattern {
	seen := make(map[KeyedPattern]struct{}, len(a)+len(b))
	out := make([]KeyedPattern, 0, len(a)+len(b))
	for _, p := range append(a, b...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
