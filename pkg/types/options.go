package types

import (
	"github.com/projectdiscovery/goflags"
)

// DatasetOptions 签名数据集配置
type DatasetOptions struct {
	DatasetDir  string // 外部签名数据集目录（按文件名升序作为优先级）
	DatasetFile string // 单个签名数据集json文件
	RulesFile   string // 自定义CEL规则yaml文件
}

// CmdOptions 命令行选项结构体
type CmdOptions struct {
	Target        goflags.StringSlice // 检测目标
	TargetsFile   string              // 检测目标文件
	Threads       int                 // 目标并发线程数
	Sources       goflags.StringSlice // 启用的检测源，空表示全部
	MinConfidence int                 // 最小置信度阈值，默认10
	MaxResults    int                 // 单目标最大结果数，默认100
	Timeout       int                 // 单目标整体超时时间(秒)，默认30
	Retries       int                 // HTTP重试次数，默认3次
	Proxy         string              // 代理地址
	UserAgent     string              // 自定义User-Agent
	Dataset       DatasetOptions      // 签名数据集配置
	Output        string              // 输出文件路径(txt/csv/json按后缀)
	JSONOutput    bool                // 是否使用JSON格式输出结果
	SockOutput    string              // socket文件输出路径，启用后以msgpack帧输出
	Debug         bool                // 设置debug模式
	NoFileLog     bool                // 是否禁用文件日志，仅输出到控制台
	Version       bool                // 查看版本信息
}
