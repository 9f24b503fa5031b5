package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"techprobe/pkg/types"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// CreateProgressBar 创建进度条
func CreateProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		int64(total),
		progressbar.OptionSetWidth(50),
		progressbar.OptionEnableColorCodes(false),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionSetDescription("技术识别"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionClearOnFinish(),
	)
}

// GetOutputFormat 确定输出格式
func GetOutputFormat(jsonOutput bool, outputPath string) string {
	// 优先判断是否启用JSON输出
	if jsonOutput {
		return "json"
	}

	if outputPath == "" {
		return "txt" // 默认为txt格式
	}

	ext := strings.ToLower(filepath.Ext(outputPath))
	switch ext {
	case ".csv":
		return "csv"
	case ".json":
		return "json"
	}
	return "txt"
}

// PrintSummary 打印汇总信息
func PrintSummary(targets []string, results map[string]*types.AnalysisResult) {
	detectedCount := 0
	emptyCount := 0
	failedCount := 0

	// 统计识别成功、无结果与抓取失败的数量
	for _, result := range results {
		switch {
		case result.Status == types.StatusFailed:
			failedCount++
		case len(result.Technologies) > 0:
			detectedCount++
		default:
			emptyCount++
		}
	}

	// 输出统计信息
	fmt.Println(color.CyanString("─────────────────────────────────────────────────────"))
	fmt.Printf("扫描统计: 目标总数 %d, 识别成功 %d, 无识别结果 %d, 抓取失败 %d\n",
		len(targets), detectedCount, emptyCount, failedCount)
}

// HandleResult 处理单目标结果：输出到控制台并按配置写入文件与socket
func HandleResult(result *types.AnalysisResult, output string, sockOutput string, printResult func(string), outputFormat string) {
	// 构建基础信息
	statusCodeStr := ""
	if result.Metadata.StatusCode > 0 {
		statusCodeStr = fmt.Sprintf("（%d）", result.Metadata.StatusCode)
	}

	baseInfoStr := fmt.Sprintf("URL：%s %s  标题：%s  状态：%s",
		result.URL, statusCodeStr, result.Metadata.Title, result.Status)

	// 按类别聚合技术名称，同类合并一行展示
	var techInfoStr string
	if len(result.Technologies) > 0 {
		techInfoStr = "  技术栈：" + formatTechList(result.Technologies)
	}

	// 根据识别结果构建完整输出信息
	var matchResultStr string
	var successColor = "\033[32m" // 绿色
	var failColor = "\033[31m"    // 红色
	var resetColor = "\033[0m"    // 重置颜色

	if len(result.Technologies) > 0 {
		matchResultStr = fmt.Sprintf("  识别结果：%s%d项%s", successColor, len(result.Technologies), resetColor)
	} else {
		matchResultStr = fmt.Sprintf("  识别结果：%s无%s", failColor, resetColor)
	}

	outputMsg := baseInfoStr + techInfoStr + matchResultStr

	// 输出结果
	printResult(outputMsg)

	// 写入输出文件
	if output != "" {
		WriteResultToFile(result, output, outputFormat)
	}

	// 写入socket
	if sockOutput != "" {
		WriteResultToSock(result)
	}
}

// formatTechList 将技术列表格式化为 "名称/版本(置信度)" 的单行文本
func formatTechList(techs []types.DetectionResult) string {
	parts := make([]string, 0, len(techs))
	for _, t := range techs {
		item := t.Name
		if len(t.Versions) > 0 {
			item += "/" + strings.Join(t.Versions, ",")
		}
		parts = append(parts, fmt.Sprintf("%s(%d)", item, t.Confidence))
	}
	return fmt.Sprintf("[%s]", strings.Join(parts, ", "))
}
