package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
)

// InitOutput 初始化输出文件，写入表头
func InitOutput(outputPath, format string) error {
	if outputPath == "" {
		return nil
	}
	return openOutputFile(outputPath, format)
}

// WriteHeader 写入输出文件的表头
func WriteHeader(format string) error {
	if headerWritten || outputFile == nil {
		return nil
	}

	if format == "csv" {
		if csvWriter == nil {
			csvWriter = csv.NewWriter(outputFile)
		}

		// CSV为每项技术一行
		if err := csvWriter.Write([]string{
			"URL", "最终URL", "状态", "状态码", "标题",
			"技术名称", "版本", "类别", "置信度", "来源",
		}); err != nil {
			return fmt.Errorf("写入CSV表头失败: %v", err)
		}
		csvWriter.Flush()
	}
	// JSON与文本格式不需要表头

	headerWritten = true
	return nil
}

// openOutputFile 打开或创建输出文件的通用函数
func openOutputFile(output, format string) error {
	// 如果文件已经正确打开，直接返回
	if outputFile != nil && outputFile.Name() == output {
		return nil
	}

	// 关闭现有的文件
	if outputFile != nil {
		if csvWriter != nil {
			csvWriter.Flush()
		}
		_ = outputFile.Close()
		outputFile = nil
		csvWriter = nil
	}

	// 确保输出目录存在
	dir := filepath.Dir(output)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建输出目录失败: %v", err)
		}
	}

	// 检查文件是否存在
	fileExists := false
	if _, err := os.Stat(output); err == nil {
		fileExists = true
	}

	// 创建模式：新文件或覆盖已有文件
	var file *os.File
	var err error

	if format == "csv" && !fileExists {
		// 对于新的CSV文件，先创建文件并写入UTF-8 BOM
		file, err = os.Create(output)
		if err != nil {
			return fmt.Errorf("创建输出文件失败: %v", err)
		}

		// 写入UTF-8 BOM标识 (EF BB BF)
		if _, err := file.Write([]byte{0xEF, 0xBB, 0xBF}); err != nil {
			file.Close()
			return fmt.Errorf("写入UTF-8 BOM失败: %v", err)
		}
	} else {
		// 非CSV文件或已存在的CSV文件，使用追加模式打开
		file, err = os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("打开输出文件失败: %v", err)
		}
	}

	outputFile = file
	headerWritten = fileExists

	// 初始化CSV写入器
	if format == "csv" {
		csvWriter = csv.NewWriter(file)
	}

	// 如果是新文件，写入表头
	if !fileExists {
		if err := WriteHeader(format); err != nil {
			return err
		}
	}

	return nil
}

// WriteAnalysis 将单目标分析结果按指定格式写入输出文件
func WriteAnalysis(result *types.AnalysisResult, output, format string) error {
	// 检查参数有效性
	if output == "" || result == nil {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	// 确保文件已打开
	if err := openOutputFile(output, format); err != nil {
		return err
	}

	// 根据不同格式写入结果
	if format == "json" {
		// 每个目标一条JSON记录
		jsonData, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("JSON序列化失败: %v", err)
		}

		// 写入JSON数据和换行符
		if _, err := outputFile.Write(jsonData); err != nil {
			return fmt.Errorf("写入JSON数据失败: %v", err)
		}
		if _, err := outputFile.Write([]byte("\n")); err != nil {
			return fmt.Errorf("写入换行符失败: %v", err)
		}

	} else if format == "csv" {
		// 每项技术一行，没有结果时也写一行占位便于筛选
		for _, row := range csvRows(result) {
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("写入CSV记录失败: %v", err)
			}
		}
		csvWriter.Flush()
	} else {
		// 使用strings.Builder提高字符串拼接效率
		var sb strings.Builder
		sb.Grow(512)

		sb.WriteString("URL: ")
		sb.WriteString(result.URL)
		if result.FinalURL != "" && result.FinalURL != result.URL {
			sb.WriteString("\n最终URL: ")
			sb.WriteString(result.FinalURL)
		}
		sb.WriteString("\n状态: ")
		sb.WriteString(result.Status)
		sb.WriteString("\n状态码: ")
		sb.WriteString(fmt.Sprintf("%d", result.Metadata.StatusCode))
		sb.WriteString("\n标题: ")
		sb.WriteString(result.Metadata.Title)
		sb.WriteString("\n耗时: ")
		sb.WriteString(result.Metadata.Duration.String())

		sb.WriteString("\n技术栈: ")
		if len(result.Technologies) > 0 {
			sb.WriteString(formatTechList(result.Technologies))
		} else {
			sb.WriteString("-")
		}

		for _, t := range result.Technologies {
			sb.WriteString(fmt.Sprintf("\n  - %s", t.Name))
			if len(t.Versions) > 0 {
				sb.WriteString(" " + strings.Join(t.Versions, ","))
			}
			sb.WriteString(fmt.Sprintf("  置信度:%d", t.Confidence))
			if t.Category != "" {
				sb.WriteString("  类别:" + t.Category)
			}
			if len(t.Sources) > 0 {
				sb.WriteString("  来源:" + strings.Join(t.Sources, "，"))
			} else {
				sb.WriteString("  来源:" + t.Source)
			}
		}

		if len(result.Errors) > 0 {
			sb.WriteString("\n错误: ")
			for _, e := range result.Errors {
				sb.WriteString(fmt.Sprintf("[%s] %s; ", e.Source, e.Message))
			}
		}

		sb.WriteString("\n")
		sb.WriteString(strings.Repeat("-", 100))
		sb.WriteString("\n")

		if _, err := outputFile.WriteString(sb.String()); err != nil {
			return fmt.Errorf("写入结果失败: %v", err)
		}
	}

	return nil
}

// csvRows 将分析结果展开为CSV行
func csvRows(result *types.AnalysisResult) [][]string {
	base := []string{
		result.URL,
		result.FinalURL,
		result.Status,
		fmt.Sprintf("%d", result.Metadata.StatusCode),
		result.Metadata.Title,
	}

	if len(result.Technologies) == 0 {
		row := append(append([]string{}, base...), "-", "-", "-", "-", "-")
		return [][]string{row}
	}

	rows := make([][]string, 0, len(result.Technologies))
	for _, t := range result.Technologies {
		sources := strings.Join(t.Sources, "，")
		if sources == "" {
			sources = t.Source
		}
		row := append(append([]string{}, base...),
			t.Name,
			strings.Join(t.Versions, ","),
			t.Category,
			fmt.Sprintf("%d", t.Confidence),
			sources,
		)
		rows = append(rows, row)
	}
	return rows
}

// WriteResultToFile 将结果写入文件
func WriteResultToFile(result *types.AnalysisResult, outputs, format string) {
	if err := WriteAnalysis(result, outputs, format); err != nil {
		logger.Error(fmt.Sprintf("写入结果文件失败: %v", err))
	}
}

// CloseFileOutput 关闭仅文件输出资源
func CloseFileOutput() error {
	mu.Lock()
	defer mu.Unlock()

	// 关闭常规输出文件
	if outputFile != nil {
		if csvWriter != nil {
			csvWriter.Flush()
		}
		err := outputFile.Close()
		outputFile = nil
		csvWriter = nil
		headerWritten = false
		return err
	}

	return nil
}
