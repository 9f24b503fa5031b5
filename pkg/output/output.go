package output

// output.go 作为主入口文件，引用其他分割后的功能文件

// 本模块主要功能:
// 1. 支持将技术识别结果以不同格式(CSV/TXT/JSON)输出到文件
// 2. 支持通过Unix domain socket实时输出msgpack编码的结果流
// 3. 支持控制台彩色输出和进度条显示

// 文件组织:
// - types.go: 全局输出状态定义
// - file.go: 文件输出相关功能
// - sock.go: Socket输出相关功能
// - console.go: 控制台输出和进度条相关功能

// 主要公开接口:
// - InitOutput: 初始化文件输出
// - InitSockOutput: 初始化Socket输出
// - WriteAnalysis: 写入单目标分析结果
// - HandleResult: 处理结果并输出到控制台/文件/Socket
// - CreateProgressBar: 创建进度条
// - PrintSummary: 打印汇总统计
// - Close: 关闭所有输出资源
