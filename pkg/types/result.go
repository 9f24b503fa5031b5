package types

import (
	"time"
)

// 分析状态常量
const (
	StatusSuccess = "success" // 抓取成功且至少一个检测源完成
	StatusPartial = "partial" // 抓取成功但部分检测源失败或超时
	StatusFailed  = "failed"  // 页面抓取失败
)

// Evidence 单条匹配证据
type Evidence struct {
	Field      string `json:"field"`             // 命中的字段类别，如headers/cookies/html
	Pattern    string `json:"pattern"`           // 命中的原始模式串
	Value      string `json:"value"`             // 命中的文本片段（已截断）
	Version    string `json:"version,omitempty"` // 该条证据提取到的版本号
	Confidence int    `json:"confidence"`        // 该条证据贡献的置信度
}

// DetectionResult 单项技术检测结果
type DetectionResult struct {
	Name       string     `json:"name"`               // 技术名称
	Versions   []string   `json:"versions,omitempty"` // 提取到的版本号集合，去重保序
	Confidence int        `json:"confidence"`         // 置信度 0-100
	Category   string     `json:"category,omitempty"`
	Source     string     `json:"source"`            // 产生该结果的主检测源
	Sources    []string   `json:"sources,omitempty"` // 聚合后所有检出该技术的源
	Evidence   []Evidence `json:"evidence"`          // 证据链
}

// SourceError 某个检测源的失败记录
type SourceError struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

// ConfidenceBuckets 置信度分布统计
type ConfidenceBuckets struct {
	High   int `json:"high"`   // >=80
	Medium int `json:"medium"` // 50-79
	Low    int `json:"low"`    // <50
}

// Metadata 分析过程元数据
type Metadata struct {
	Title                  string            `json:"title,omitempty"`       // 页面标题
	StatusCode             int               `json:"status_code,omitempty"` // 抓取的HTTP状态码
	SourcesUsed            []string          `json:"sources_used"`          // 实际运行的检测源
	DetectionBreakdown     map[string]int    `json:"detection_breakdown"`   // 各检测源去重前的结果数
	ConfidenceDistribution ConfidenceBuckets `json:"confidence_distribution"`
	Duration               time.Duration     `json:"duration"` // 分析耗时
}

// AnalysisResult 单个目标的完整分析结果
type AnalysisResult struct {
	URL          string            `json:"url"`                 // 归一化后的输入URL
	FinalURL     string            `json:"final_url,omitempty"` // 跟随重定向后的最终URL
	Status       string            `json:"status"`              // success/partial/failed
	Technologies []DetectionResult `json:"technologies"`
	Errors       []SourceError     `json:"errors,omitempty"`
	Metadata     Metadata          `json:"metadata"`
}

// AnalyzeOptions 单次分析的运行参数
type AnalyzeOptions struct {
	MinConfidence int           // 低于该值的结果被丢弃
	MaxResults    int           // 聚合后的结果上限
	Timeout       time.Duration // 整体截止时间
	SourceTimeout time.Duration // 单个检测源超时时间
	Sources       []string      // 启用的检测源名称，空表示全部
	UserAgent     string        // 自定义UA，空则随机
}

// DefaultAnalyzeOptions 返回默认分析参数
func DefaultAnalyzeOptions() AnalyzeOptions {
	return AnalyzeOptions{
		MinConfidence: 10,
		MaxResults:    100,
		Timeout:       30 * time.Second,
		SourceTimeout: 20 * time.Second,
	}
}
