package engines

import (
	"errors"
	"fmt"

	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// ErrUnavailable 检测源缺少运行条件（外部程序、API密钥等）
var ErrUnavailable = errors.New("检测源不可用")

// Source 检测源契约
// Available在启动时判定一次，不可用的源整次运行都被跳过
type Source interface {
	Name() string
	Available() bool
	// NeedsPage 为true的源在页面抓取失败时跳过
	NeedsPage() bool
	Analyze(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, error)
}

// Registry 可用检测源集合
type Registry struct {
	sources []Source
}

// NewRegistry 过滤掉不可用的源并记录日志
func NewRegistry(sources ...Source) *Registry {
	r := &Registry{}
	for _, s := range sources {
		if !s.Available() {
			logger.Warn(fmt.Sprintf("检测源 %s 不可用，本次运行跳过", s.Name()))
			continue
		}
		r.sources = append(r.sources, s)
	}
	return r
}

// Select 按名称挑选检测源，names为空返回全部
// 未知名称只记录告警，不中断
func (r *Registry) Select(names []string) []Source {
	if len(names) == 0 {
		return r.sources
	}
	byName := make(map[string]Source, len(r.sources))
	for _, s := range r.sources {
		byName[s.Name()] = s
	}
	var out []Source
	for _, n := range names {
		s, ok := byName[n]
		if !ok {
			logger.Warn(fmt.Sprintf("未知或不可用的检测源：%s", n))
			continue
		}
		out = append(out, s)
	}
	return out
}

// Names 返回所有可用源的名称
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for _, s := range r.sources {
		names = append(names, s.Name())
	}
	return names
}

// versionList 把外部源给出的单个版本号包装为版本集合
func versionList(v string) []string {
	if v == "" {
		return nil
	}
	return []string{v}
}
