package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"techprobe/pkg/types"

	"github.com/donnie4w/go-logger/logger"
	"github.com/projectdiscovery/goflags"
	"github.com/spf13/pflag"
)

// NewCmdOptions 初始化并解析命令行参数，返回 CmdOptions 结构体实例和可能的错误。
// 该函数使用 pflag 包定义并解析命令行选项，支持多种检测目标输入方式、输出配置、
// 并发控制、超时设置、代理配置、数据集与检测源选择等功能。
func NewCmdOptions() (types.CmdOptions, error) {
	options := types.CmdOptions{}
	flagset := pflag.NewFlagSet("techprobe", pflag.ExitOnError)

	var targets, sources []string

	// 定义命令行参数
	flagset.StringSliceVarP(&targets, "url", "u", []string{}, "检测目标: 可以为URL/IP/域名/Host:Port等多种形式的混合输入")
	flagset.StringVarP(&options.TargetsFile, "list", "l", "", "目标文件: 指定含有检测目标的文本文件")
	flagset.StringSliceVarP(&sources, "sources", "s", []string{}, "启用的检测源(dataset/wappalyzer/whatweb/whatcms/favicon/rules)，默认全部")
	flagset.IntVar(&options.MinConfidence, "min-confidence", 10, "最小置信度阈值，低于该值的结果被丢弃")
	flagset.IntVar(&options.MaxResults, "max-results", 100, "单目标最大结果数")
	flagset.StringVarP(&options.Output, "output", "o", "", "结果输出: 指定保存结果的文件路径（txt/csv/json，根据扩展名自动识别；也可配合 --json 输出JSON）")
	flagset.BoolVar(&options.JSONOutput, "json", false, "使用JSON格式输出结果到文件")
	flagset.StringVar(&options.SockOutput, "sock", "", "结果输出: 输出socket文件，订阅端收到msgpack编码的结果流")
	flagset.StringVarP(&options.Proxy, "proxy", "p", "", "HTTP客户端代理: [http|https|socks5://][username[:password]@]host[:port]")
	flagset.IntVarP(&options.Threads, "threads", "t", 5, "URL并发线程数")
	flagset.IntVar(&options.Timeout, "timeout", 30, "单目标整体超时时间(秒)")
	flagset.IntVar(&options.Retries, "retries", 2, "请求失败重试次数")
	flagset.StringVar(&options.UserAgent, "ua", "", "自定义User-Agent，默认随机")
	flagset.StringVar(&options.Dataset.DatasetDir, "dataset-dir", "", "外部签名数据集目录，按文件名升序作为优先级")
	flagset.StringVarP(&options.Dataset.DatasetFile, "dataset", "d", "", "外部签名数据集json文件")
	flagset.StringVarP(&options.Dataset.RulesFile, "rules", "r", "", "自定义CEL规则yaml文件")
	flagset.BoolVar(&options.Debug, "debug", false, "调试：打印debug日志")
	flagset.BoolVar(&options.NoFileLog, "no-file-log", false, "不保存日志到文件")
	flagset.BoolVarP(&options.Version, "version", "v", false, "查看版本信息")

	// 禁止自动排序参数
	flagset.SortFlags = false

	// 自定义 Usage
	flagset.Usage = func() {
		fmt.Fprintf(pflag.CommandLine.Output(), "用法: %s [选项]\n", os.Args[0])
		fmt.Println("Web技术栈识别工具")
		fmt.Println()
		fmt.Println("选项:")
		flagset.PrintDefaults()
		fmt.Println()
		fmt.Println("示例:")
		fmt.Println("  ", os.Args[0], "-u http://test.com")
		fmt.Println("  ", os.Args[0], "-l targets.txt -o result.csv -t 10")
		fmt.Println("  ", os.Args[0], "-u http://test.com -s dataset,wappalyzer --json -o result.json")
	}

	// 解析命令行参数
	_ = flagset.Parse(os.Args[1:])

	options.Target = goflags.StringSlice(targets)
	options.Sources = goflags.StringSlice(sources)

	// 验证必参数是否传入
	if err := verifyOptions(&options); err != nil {
		return options, err
	}

	return options, nil
}

// verifyOptions 验证命令行选项
func verifyOptions(opt *types.CmdOptions) error {
	// 查看版本信息时跳过其余校验
	if opt.Version {
		return nil
	}

	// 验证目标输入
	if len(opt.Target) == 0 && opt.TargetsFile == "" {
		return fmt.Errorf("必须使用`-u`或`-l`参数指定检测目标")
	}

	// 验证输出文件格式
	if opt.Output != "" && !opt.JSONOutput { // 如果启用了JSON格式输出，则不检查文件扩展名
		ext := strings.ToLower(filepath.Ext(opt.Output))
		if ext != ".txt" && ext != ".csv" && ext != ".json" {
			return fmt.Errorf("输出文件格式仅支持.txt/.csv/.json，也可以使用--json参数启用JSON格式输出")
		}
	}

	// 验证socket文件扩展名
	if opt.SockOutput != "" {
		ext := strings.ToLower(filepath.Ext(opt.SockOutput))
		if ext != ".sock" {
			return fmt.Errorf("socket输出文件扩展名必须是.sock")
		}
	}

	// 验证检测源名称
	for _, s := range opt.Sources {
		switch s {
		case "dataset", "wappalyzer", "whatweb", "whatcms", "favicon", "rules":
		default:
			return fmt.Errorf("未知的检测源: %s", s)
		}
	}

	// 验证线程数
	if opt.Threads <= 0 {
		logger.Warn("指定线程数无效，将使用默认值5")
		opt.Threads = 5
	}

	// 验证置信度阈值
	if opt.MinConfidence < 0 || opt.MinConfidence > 100 {
		logger.Warn("指定置信度阈值不合法，将使用默认值10")
		opt.MinConfidence = 10
	}

	// 验证超时时间
	if opt.Timeout <= 0 {
		logger.Warn("指定超时时间不合法，将使用默认值30秒")
		opt.Timeout = 30
	}

	// 重试次数
	if opt.Retries < 0 {
		logger.Warn("指定重试次数不合法，将使用默认值1")
		opt.Retries = 1
	}

	return nil
}
