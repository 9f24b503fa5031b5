package runner

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"techprobe/pkg/output"
	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"golang.org/x/net/context"
)

// 全局配置常量 - 导出供外部使用
const (
	DefaultURLWorkers    = 5   // URL处理池默认大小
	DefaultSourceWorkers = 16  // 检测源池默认大小
	MaxSourceWorkers     = 256 // 最大检测源工作线程
	MinSourceWorkers     = 16  // 最小检测源工作线程
)

// Runner 技术识别运行器
type Runner struct {
	Config    *ScanConfig                      // 配置参数
	Results   map[string]*types.AnalysisResult // 扫描结果
	orch      *Orchestrator                    // 单目标分析调度器
	mutex     sync.RWMutex                     // 读写锁保护Results
	isRunning atomic.Bool                      // 运行状态标志
}

// NewRunner 创建一个新的扫描运行器
func NewRunner(options *types.CmdOptions) *Runner {
	// 设置URL并发参数，通过参数获取线程数，参数小于0时使用程序默认
	urlWorkerCount := options.Threads
	if urlWorkerCount <= 0 {
		urlWorkerCount = DefaultURLWorkers
	}

	// 检测源线程数随URL并发放大，并进行钳制
	sourceWorkerCount := urlWorkerCount * 8
	if sourceWorkerCount < MinSourceWorkers {
		sourceWorkerCount = MinSourceWorkers
	}
	if sourceWorkerCount > MaxSourceWorkers {
		sourceWorkerCount = MaxSourceWorkers
	}

	// 创建配置
	config := &ScanConfig{
		Proxy:             options.Proxy,
		Timeout:           options.Timeout,
		URLWorkerCount:    urlWorkerCount,
		SourceWorkerCount: sourceWorkerCount,
		OutputFormat:      output.GetOutputFormat(options.JSONOutput, options.Output),
		OutputFile:        options.Output,
		JSONOutput:        options.JSONOutput,
		SockOutputFile:    options.SockOutput,
	}

	return &Runner{
		Config:  config,
		Results: make(map[string]*types.AnalysisResult),
	}
}

// Run 执行扫描
func (r *Runner) Run(options *types.CmdOptions) error {
	// 检查扫描器是否已经运行
	if !r.isRunning.CompareAndSwap(false, true) {
		return fmt.Errorf("扫描器已在运行中")
	}
	// 确保扫描器停止
	defer r.isRunning.Store(false)

	// 扫描期间监控内存压力
	StartMemoryMonitor()
	defer StopMemoryMonitor()

	// 处理目标URL列表
	targets, err := getTargets(options)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("未找到有效的目标URL")
	}

	// 打印扫描目标数
	logger.Info(fmt.Sprintf("准备扫描 %d 个目标", len(targets)))

	// 初始化输出文件
	if r.Config.OutputFile != "" {
		if err := output.InitOutput(r.Config.OutputFile, r.Config.OutputFormat); err != nil {
			return fmt.Errorf("初始化输出文件失败: %v", err)
		}
		logger.Info(fmt.Sprintf("结果输出文件：%s", r.Config.OutputFile))
		defer func() {
			_ = output.Close()
		}()
	}

	// 初始化socket输出
	if r.Config.SockOutputFile != "" {
		if err := output.InitSockOutput(r.Config.SockOutputFile); err != nil {
			return fmt.Errorf("初始化socket输出失败: %v", err)
		}
		logger.Info(fmt.Sprintf("Socket输出文件：%s", r.Config.SockOutputFile))
	}

	// 组装签名库与检测源
	registry, err := BuildRegistry(options)
	if err != nil {
		return err
	}

	// 创建单目标分析调度器
	orch, err := NewOrchestrator(registry, OrchestratorConfig{
		Proxy:       r.Config.Proxy,
		Retries:     options.Retries,
		WorkerCount: r.Config.SourceWorkerCount,
	})
	if err != nil {
		return err
	}
	r.orch = orch
	// 在函数返回时释放检测源池资源
	defer func() {
		orch.Close()
		r.orch = nil
	}()

	logger.Info(fmt.Sprintf("开始扫描 %d 个目标，使用 %d 个URL并发线程, %d 个检测源并发线程...",
		len(targets), r.Config.URLWorkerCount, r.Config.SourceWorkerCount))

	// 执行扫描
	if err := r.runScan(targets, options); err != nil {
		return err
	}

	// 打印统计信息
	r.mutex.RLock()
	output.PrintSummary(targets, r.Results)
	r.mutex.RUnlock()

	return nil
}

// ScanTarget 扫描单个目标URL
func (r *Runner) ScanTarget(target string, options *types.CmdOptions) (*types.AnalysisResult, error) {
	if !r.isRunning.Load() || r.orch == nil {
		return nil, fmt.Errorf("扫描器未运行")
	}
	return r.orch.AnalyzeURL(context.Background(), target, analyzeOptions(options))
}

// runScan 执行扫描过程
func (r *Runner) runScan(targets []string, options *types.CmdOptions) error {
	// 使用较小缓冲通道收集结果，避免为大规模目标一次性分配巨大缓冲区
	chanCap := r.Config.URLWorkerCount * 2
	if chanCap < 1 {
		chanCap = 1
	}
	if chanCap > len(targets) {
		chanCap = len(targets)
	}
	resultChan := make(chan struct {
		target string
		result *types.AnalysisResult
	}, chanCap)

	// 创建进度条
	bar := output.CreateProgressBar(len(targets))

	doneChan := make(chan struct{}, chanCap)
	stopRefreshChan := make(chan struct{})

	// 添加定时刷新进度条的功能
	refreshTicker := time.NewTicker(500 * time.Millisecond)
	go func() {
		defer refreshTicker.Stop()
		for {
			select {
			case <-refreshTicker.C:
				if err := bar.RenderBlank(); err != nil {
					logger.Debug(fmt.Sprintf("刷新进度条出错: %v", err))
				}
			case <-stopRefreshChan:
				return
			}
		}
	}()

	// 启动进度条更新协程
	go func() {
		for range doneChan {
			if err := bar.Add(1); err != nil {
				logger.Debug(fmt.Sprintf("更新进度条出错: %v", err))
			}
		}
	}()

	// 收集结果的协程
	collectDone := make(chan struct{})
	go func() {
		defer close(collectDone)
		for data := range resultChan {
			r.mutex.Lock()
			r.Results[data.target] = data.result
			r.mutex.Unlock()
		}
	}()

	// 存储输出的结果 - 线程安全的结果输出
	saveResult := func(msg string) {
		fmt.Print("\033[2K\r")
		fmt.Println(msg)
		if err := bar.RenderBlank(); err != nil {
			logger.Debug(fmt.Sprintf("重新显示进度条出错: %v", err))
		}
	}

	// 定义URL处理任务结构体
	type urlTask struct {
		target string
	}

	opts := analyzeOptions(options)
	var urlWg sync.WaitGroup

	// 创建URL处理工作池（通过统一封装）
	pool, err := NewWorkPoolWithFunc(
		r.Config.URLWorkerCount,
		func(i interface{}) {
			defer urlWg.Done()
			task, ok := i.(urlTask)
			if !ok {
				logger.Error("无效的URL任务类型")
				return
			}

			target := task.target

			// 分析单个目标
			result, err := r.orch.AnalyzeURL(context.Background(), target, opts)
			if err != nil {
				logger.Error(fmt.Sprintf("处理目标 %s 失败: %v", target, err))
				result = &types.AnalysisResult{
					URL:          target,
					Status:       types.StatusFailed,
					Technologies: []types.DetectionResult{},
					Errors: []types.SourceError{
						{Source: "orchestrator", Message: err.Error()},
					},
				}
			}

			// 将结果写入文件并显示结果
			output.HandleResult(result, options.Output, options.SockOutput, saveResult, r.Config.OutputFormat)

			// 通过通道发送结果
			resultChan <- struct {
				target string
				result *types.AnalysisResult
			}{target, result}

			// 通知完成一个任务
			select {
			case doneChan <- struct{}{}:
			default:
				logger.Debug("完成通道已满")
			}
		},
		r.Config.URLWorkerCount*5,
		3*time.Minute,
		func(i interface{}) { logger.Error(fmt.Sprintf("URL池goroutine异常: %v", i)) },
	)

	if err != nil {
		return fmt.Errorf("创建URL处理池失败: %v", err)
	}
	defer pool.Release()

	// 提交所有目标到线程池
	for _, target := range targets {
		urlWg.Add(1)
		if err := pool.Invoke(urlTask{target: target}); err != nil {
			urlWg.Done()
			logger.Error(fmt.Sprintf("提交目标 %s 到线程池失败: %v", target, err))
		}
	}

	// 等待当前批次完成
	urlWg.Wait()

	// 等待所有URL处理完成
	close(resultChan)
	<-collectDone
	close(doneChan)

	// 停止刷新进度条
	close(stopRefreshChan)

	// 确保最终完成100%进度
	if err := bar.Finish(); err != nil {
		logger.Debug(fmt.Sprintf("完成进度条出错: %v", err))
	}

	// 打印池统计信息
	stats := r.orch.Stats()
	logger.Info(fmt.Sprintf("检测源池统计 - 总任务: %d, 已完成: %d, 失败: %d",
		stats.TotalTasks, stats.CompletedTasks, stats.FailedTasks))

	return nil
}
