package cmd

import (
	"os"

	"techprobe/pkg/cli"
	"techprobe/pkg/runner"
	"techprobe/pkg/utils/common"

	"github.com/donnie4w/go-logger/logger"
)

// init 配置日志格式
func init() {
	// 日志格式初始化
	logger.SetFormat(logger.FORMAT_TIME | logger.FORMAT_LEVELFLAG | logger.FORMAT_SHORTFILENAME)
	logger.SetFormatter("[{time}] {level} {message} [{file}]\n")
	logger.SetLevel(logger.LEVEL_INFO)
}

// Execute 整个程序的入口
func Execute() {
	// 打印 banner 信息
	cli.DisplayBanner()

	// 声明参数结构变量
	options, err := cli.NewCmdOptions()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	// 打印版本信息并退出
	if options.Version {
		cli.DisplayVersion()
		os.Exit(0)
	}

	// 配置日志级别
	if options.Debug {
		logger.SetLevel(logger.LEVEL_DEBUG)
		common.LogLevel = logger.LEVEL_DEBUG
		logger.Debug("设置日志级别为：DEBUG")
	}

	// 日志写入文件，按天滚动
	if !options.NoFileLog {
		logger.SetRollingDaily("logs", "techprobe.log")
	}

	// 创建运行器并执行扫描
	r := runner.NewRunner(&options)
	if err := r.Run(&options); err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}
}
