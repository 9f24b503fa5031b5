package runner

import (
	"fmt"
	"time"

	"techprobe/pkg/engines"
	"techprobe/pkg/network"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// Orchestrator 单目标分析的调度器
// 页面只抓取一次，检测源并发执行，个别源失败不影响整体结果
type Orchestrator struct {
	registry *engines.Registry
	pool     *sourcePool

	proxy   string
	retries int
}

// OrchestratorConfig 调度器配置
type OrchestratorConfig struct {
	Proxy       string // 代理地址
	Retries     int    // HTTP重试次数
	WorkerCount int    // 检测源并发数
}

// NewOrchestrator 创建调度器
func NewOrchestrator(registry *engines.Registry, cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 16
	}
	pool, err := newSourcePool(cfg.WorkerCount)
	if err != nil {
		return nil, err
	}
	return &Orchestrator{
		registry: registry,
		pool:     pool,
		proxy:    cfg.Proxy,
		retries:  cfg.Retries,
	}, nil
}

// Close 释放调度器资源
func (o *Orchestrator) Close() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Stats 返回检测源池统计
func (o *Orchestrator) Stats() SourcePoolStats {
	return o.pool.Stats()
}

// AnalyzeURL 分析单个目标
// 页面抓取失败时状态为failed，但仍运行不依赖页面的检测源并返回结构化结果；
// 返回error仅表示输入本身无效
func (o *Orchestrator) AnalyzeURL(ctx context.Context, target string, opts types.AnalyzeOptions) (*types.AnalysisResult, error) {
	if target == "" {
		return nil, network.ErrEmptyTarget
	}
	fillDefaults(&opts)
	start := time.Now()

	// 整体截止时间
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	// 协议归一化，探测失败时保留原样交给后续抓取报错
	normalized, err := network.CheckProtocol(target, o.proxy)
	if err != nil {
		logger.Debugf("协议探测失败，按原始目标继续：%s（%v）", target, err)
		normalized = target
	}

	result := &types.AnalysisResult{
		URL:    normalized,
		Status: types.StatusSuccess,
	}

	page, fetchErr := network.FetchPage(ctx, normalized, network.OptionsRequest{
		Proxy:     o.proxy,
		Timeout:   opts.SourceTimeout,
		Retries:   o.retries,
		UserAgent: opts.UserAgent,
	})
	if fetchErr != nil {
		logger.Warn(fmt.Sprintf("目标 %s 抓取失败：%v", normalized, fetchErr))
		result.Status = types.StatusFailed
		result.Errors = append(result.Errors, types.SourceError{
			Source: "fetch", Message: fetchErr.Error(),
		})
	} else {
		result.FinalURL = page.FinalURL
		result.Metadata.Title = page.Title
		result.Metadata.StatusCode = page.StatusCode
	}

	raw, srcErrs, used := o.fanOut(ctx, normalized, page, opts)
	result.Errors = append(result.Errors, srcErrs...)
	if result.Status == types.StatusSuccess && len(srcErrs) > 0 {
		result.Status = types.StatusPartial
	}

	technologies, breakdown, buckets := Aggregate(raw, opts)
	if technologies == nil {
		technologies = []types.DetectionResult{}
	}
	result.Technologies = technologies
	result.Metadata.SourcesUsed = used
	result.Metadata.DetectionBreakdown = breakdown
	result.Metadata.ConfidenceDistribution = buckets
	result.Metadata.Duration = time.Since(start)

	logger.Info(fmt.Sprintf("分析完成：%s 状态%s 技术%d项 耗时%v",
		normalized, result.Status, len(result.Technologies), result.Metadata.Duration))
	return result, nil
}

// fanOut 并发执行选中的检测源并收集结果
func (o *Orchestrator) fanOut(ctx context.Context, target string, page *network.PageData, opts types.AnalyzeOptions) ([]types.DetectionResult, []types.SourceError, []string) {
	sources := o.registry.Select(opts.Sources)

	var runnable []engines.Source
	for _, s := range sources {
		// 页面抓取失败时跳过依赖页面的源
		if page == nil && s.NeedsPage() {
			logger.Debugf("检测源 %s 依赖页面数据，本次跳过", s.Name())
			continue
		}
		runnable = append(runnable, s)
	}
	if len(runnable) == 0 {
		return nil, nil, []string{}
	}

	resultChan := make(chan sourceResult, len(runnable))

	used := make([]string, 0, len(runnable))
	var errs []types.SourceError
	submitted := 0
	for _, s := range runnable {
		task := &SourceTask{
			Ctx:        ctx,
			Source:     s,
			Target:     target,
			Page:       page,
			Opts:       opts,
			ResultChan: resultChan,
		}
		if err := o.pool.Submit(task); err != nil {
			errs = append(errs, types.SourceError{Source: s.Name(), Message: err.Error()})
			continue
		}
		used = append(used, s.Name())
		submitted++
	}

	// 通道带满额缓冲，落后的源完成后直接入队不阻塞
	var raw []types.DetectionResult
	received := 0
collect:
	for received < submitted {
		select {
		case res := <-resultChan:
			received++
			if res.err != nil {
				errs = append(errs, types.SourceError{Source: res.source, Message: res.err.Error()})
				continue
			}
			raw = append(raw, res.results...)
		case <-ctx.Done():
			errs = append(errs, types.SourceError{
				Source:  "orchestrator",
				Message: fmt.Sprintf("整体超时，%d个检测源未完成", submitted-received),
			})
			break collect
		}
	}
	return raw, errs, used
}

// fillDefaults 补齐分析参数缺省值
func fillDefaults(opts *types.AnalyzeOptions) {
	def := types.DefaultAnalyzeOptions()
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = def.MinConfidence
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.SourceTimeout <= 0 || opts.SourceTimeout > opts.Timeout {
		opts.SourceTimeout = def.SourceTimeout
		if opts.SourceTimeout > opts.Timeout {
			opts.SourceTimeout = opts.Timeout
		}
	}
}
