package runner

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"techprobe/pkg/engines"
	"techprobe/pkg/matcher"
	"techprobe/pkg/signature"
	"techprobe/pkg/types"
	"techprobe/pkg/utils"
	"techprobe/pkg/utils/common"

	"github.com/donnie4w/go-logger/logger"
)

// 外部数据集的优先级起点，永远高于内置数据集
const (
	externalFilePriority = 1000
	externalDirPriority  = 2000
)

// getTargets 从命令行参数或文件中读取目标，并进行去重处理
func getTargets(options *types.CmdOptions) ([]string, error) {
	// 优先使用命令行直接指定的目标
	if len(options.Target) > 0 {
		// 记录原始目标数
		originalCount := len(options.Target)
		// 移除重复目标
		targets := common.RemoveDuplicates([]string(options.Target))
		// 计算重复目标数
		duplicateCount := originalCount - len(targets)
		logger.Info(fmt.Sprintf("原始目标数量：%v个，重复目标数量：%v个，去重后目标数量：%v个", originalCount, duplicateCount, len(targets)))
		return targets, nil
	}

	// 其次从文件读取（流式扫描，内存占用更低）
	if options.TargetsFile == "" {
		return nil, fmt.Errorf("目标文件为空")
	}

	// 读取文件内容
	file, err := os.Open(options.TargetsFile)
	if err != nil {
		return nil, fmt.Errorf("读取目标文件失败: %v", err)
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	// 提升扫描缓存，避免异常长行导致的扫描失败
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	unique := make(map[string]struct{}, 1024)
	targets := make([]string, 0, 1024)
	totalLines := 0
	for scanner.Scan() {
		// 移除字符串前后空白字符
		line := strings.TrimSpace(scanner.Text())
		// 空行处理
		if line == "" {
			continue
		}
		// 计数
		totalLines++
		if _, ok := unique[line]; !ok {
			unique[line] = struct{}{}
			targets = append(targets, line)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error(fmt.Sprintf("扫描目标文件出错: %v", err))
	}

	// 计算重复目标数量
	duplicateCount := totalLines - len(targets)
	logger.Info(fmt.Sprintf("原始目标数量：%v个，重复目标数量：%v个，去重后目标数量：%v个", totalLines, duplicateCount, len(targets)))

	return targets, nil
}

// BuildRegistry 按命令行配置组装签名库与全部检测源
// 内置数据集优先级最低，外部单文件次之，外部目录最高
func BuildRegistry(options *types.CmdOptions) (*engines.Registry, error) {
	store := signature.NewStore()

	var datasets []signature.Dataset
	if utils.HasEmbeddedDatasets() {
		embedded, err := utils.DefaultDatasets()
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, embedded...)
	}

	if options.Dataset.DatasetFile != "" {
		data, err := os.ReadFile(options.Dataset.DatasetFile)
		if err != nil {
			return nil, fmt.Errorf("读取数据集文件失败: %v", err)
		}
		datasets = append(datasets, signature.Dataset{
			Name:     options.Dataset.DatasetFile,
			Data:     data,
			Priority: externalFilePriority,
		})
	}

	if err := store.Load(datasets); err != nil {
		// 还有外部目录可以补救时不立即失败
		if options.Dataset.DatasetDir == "" {
			return nil, fmt.Errorf("加载签名数据集出错: %v", err)
		}
		logger.Warn(fmt.Sprintf("加载签名数据集出错: %v", err))
	}

	if options.Dataset.DatasetDir != "" {
		if err := store.LoadDir(options.Dataset.DatasetDir, externalDirPriority); err != nil {
			return nil, fmt.Errorf("加载数据集目录出错: %v", err)
		}
	}

	if len(store.Conflicts) > 0 {
		logger.Info(fmt.Sprintf("数据集合并产生 %d 条字段覆盖记录", len(store.Conflicts)))
	}

	start := time.Now()
	idx := signature.NewIndex(store, signature.NewCompiler())
	logger.Debugf("签名索引构建完成，耗时 %v", time.Since(start))

	registry := engines.NewRegistry(
		matcher.NewEngine(idx),
		engines.NewWappalyzerSource(),
		engines.NewWhatWebSource(),
		engines.NewWhatCMSSource(options.Proxy),
		engines.NewFaviconSource(options.Proxy),
		engines.NewRulesSource(options.Dataset.RulesFile),
	)
	logger.Info(fmt.Sprintf("可用检测源：%v", registry.Names()))
	return registry, nil
}

// analyzeOptions 由命令行选项生成单目标分析参数
func analyzeOptions(options *types.CmdOptions) types.AnalyzeOptions {
	opts := types.DefaultAnalyzeOptions()
	if options.MinConfidence > 0 {
		opts.MinConfidence = options.MinConfidence
	}
	if options.MaxResults > 0 {
		opts.MaxResults = options.MaxResults
	}
	if options.Timeout > 0 {
		opts.Timeout = time.Duration(options.Timeout) * time.Second
	}
	if opts.SourceTimeout > opts.Timeout {
		opts.SourceTimeout = opts.Timeout
	}
	opts.Sources = []string(options.Sources)
	opts.UserAgent = options.UserAgent
	return opts
}
