package runner

// ScanConfig 批量扫描配置参数
type ScanConfig struct {
	Proxy             string // 代理配置
	Timeout           int    // 单目标整体超时(秒)
	URLWorkerCount    int    // 目标并发线程数
	SourceWorkerCount int    // 检测源并发线程数
	OutputFormat      string // 输出格式(txt/csv/json)
	OutputFile        string // 输出文件
	JSONOutput        bool   // 是否JSON格式输出
	SockOutputFile    string // 输出sock文件
}
