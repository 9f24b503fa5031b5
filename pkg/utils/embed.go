package utils

import (
	"embed"
	"fmt"
	"sort"

	"techprobe/pkg/signature"

	"github.com/donnie4w/go-logger/logger"
)

//go:embed data/*.json
var embeddedDatasetFS embed.FS

var hasEmbeddedDatasets bool

// init 检测内置签名数据集是否可用
func init() {
	files, err := embeddedDatasetFS.ReadDir("data")
	if err != nil || len(files) == 0 {
		hasEmbeddedDatasets = false
		logger.Warn(fmt.Sprintf("未嵌入签名数据集，仅能使用外部数据集。错误信息：%v", err))
		return
	}
	hasEmbeddedDatasets = true
}

// HasEmbeddedDatasets 是否存在内置签名数据集
func HasEmbeddedDatasets() bool {
	return hasEmbeddedDatasets
}

// DefaultDatasets 返回内置签名数据集
// 文件名升序决定优先级，靠后的文件在合并冲突时覆盖靠前的
func DefaultDatasets() ([]signature.Dataset, error) {
	files, err := embeddedDatasetFS.ReadDir("data")
	if err != nil {
		return nil, fmt.Errorf("读取内置数据集目录出错: %v", err)
	}

	names := make([]string, 0, len(files))
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		names = append(names, f.Name())
	}
	sort.Strings(names)

	datasets := make([]signature.Dataset, 0, len(names))
	for i, name := range names {
		data, err := embeddedDatasetFS.ReadFile("data/" + name)
		if err != nil {
			return nil, fmt.Errorf("读取内置数据集 %s 出错: %v", name, err)
		}
		datasets = append(datasets, signature.Dataset{
			Name:     "embedded://" + name,
			Data:     data,
			Priority: i,
		})
	}
	return datasets, nil
}
