package runner

import (
	"fmt"
	"sync/atomic"
	"time"

	"techprobe/pkg/engines"
	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/net/context"
)

// Pool 抽象的工作池接口，屏蔽对 ants 的直接依赖
type Pool interface {
	Invoke(i interface{}) error
	Release()
}

// antsPoolWrapper 使用 ants.PoolWithFunc 实现 Pool 接口
type antsPoolWrapper struct {
	inner *ants.PoolWithFunc
}

func (p *antsPoolWrapper) Invoke(i interface{}) error { return p.inner.Invoke(i) }
func (p *antsPoolWrapper) Release()                   { p.inner.Release() }

// NewWorkPoolWithFunc 创建一个带函数处理器的工作池
// 统一在此集中 ants 相关实现
func NewWorkPoolWithFunc(
	workerCount int,
	handler func(interface{}),
	maxBlockingTasks int,
	expiry time.Duration,
	panicHandler func(interface{}),
) (Pool, error) {
	pool, err := ants.NewPoolWithFunc(
		workerCount,
		handler,
		ants.WithPreAlloc(true),
		ants.WithExpiryDuration(expiry),
		ants.WithNonblocking(false),
		ants.WithMaxBlockingTasks(maxBlockingTasks),
		ants.WithPanicHandler(panicHandler),
	)
	if err != nil {
		return nil, err
	}
	return &antsPoolWrapper{inner: pool}, nil
}

// ===================== 检测源池封装 =====================

// SourcePoolStats 检测源池统计信息
type SourcePoolStats struct {
	TotalTasks     int64 // 成功提交的总任务数
	CompletedTasks int64 // 已完成任务数
	FailedTasks    int64 // 失败任务数
}

// sourceResult 单个检测源的执行结果
type sourceResult struct {
	source  string
	results []types.DetectionResult
	err     error
}

// SourceTask 检测源执行任务
type SourceTask struct {
	Ctx        context.Context
	Source     engines.Source
	Target     string
	Page       *network.PageData
	Opts       types.AnalyzeOptions
	ResultChan chan<- sourceResult
}

// sourcePool 检测源执行池，由Orchestrator持有
type sourcePool struct {
	pool  Pool
	stats SourcePoolStats
}

// newSourcePool 创建检测源执行池
func newSourcePool(workerCount int) (*sourcePool, error) {
	sp := &sourcePool{}

	handler := func(i interface{}) {
		task, ok := i.(*SourceTask)
		if !ok {
			atomic.AddInt64(&sp.stats.FailedTasks, 1)
			logger.Error("无效的检测源任务类型")
			return
		}
		sp.runSourceTask(task)
		atomic.AddInt64(&sp.stats.CompletedTasks, 1)
	}

	pool, err := NewWorkPoolWithFunc(
		workerCount,
		handler,
		workerCount*10,
		2*time.Minute,
		func(i interface{}) {
			atomic.AddInt64(&sp.stats.FailedTasks, 1)
			logger.Error(fmt.Sprintf("检测源池goroutine异常: %v", i))
		},
	)
	if err != nil {
		return nil, fmt.Errorf("创建检测源池失败: %v", err)
	}
	sp.pool = pool
	logger.Debugf("检测源池初始化完成，工作线程数: %d", workerCount)
	return sp, nil
}

// Submit 提交检测源任务
func (sp *sourcePool) Submit(task *SourceTask) error {
	if err := sp.pool.Invoke(task); err != nil {
		return err
	}
	atomic.AddInt64(&sp.stats.TotalTasks, 1)
	return nil
}

// Release 释放池资源
func (sp *sourcePool) Release() {
	if sp.pool != nil {
		sp.pool.Release()
		sp.pool = nil
	}
}

// Stats 获取池统计信息
func (sp *sourcePool) Stats() SourcePoolStats {
	return SourcePoolStats{
		TotalTasks:     atomic.LoadInt64(&sp.stats.TotalTasks),
		CompletedTasks: atomic.LoadInt64(&sp.stats.CompletedTasks),
		FailedTasks:    atomic.LoadInt64(&sp.stats.FailedTasks),
	}
}

// runSourceTask 执行单个检测源，带独立超时
func (sp *sourcePool) runSourceTask(task *SourceTask) {
	ctx, cancel := context.WithTimeout(task.Ctx, task.Opts.SourceTimeout)
	defer cancel()

	results, err := task.Source.Analyze(ctx, task.Target, task.Page, task.Opts)
	if err != nil {
		atomic.AddInt64(&sp.stats.FailedTasks, 1)
		logger.Debug(fmt.Sprintf("检测源 %s 执行失败: %v", task.Source.Name(), err))
	}

	select {
	case task.ResultChan <- sourceResult{source: task.Source.Name(), results: results, err: err}:
	default:
		logger.Debug(fmt.Sprintf("结果通道已满，丢弃检测源 %s 的结果", task.Source.Name()))
	}
}
