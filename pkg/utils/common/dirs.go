package common

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DirIsExist 判断指定目录是否存在
func DirIsExist(path string) bool {
	// 无效路径
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		// 如果是路径不存在的错误，返回 false
		if os.IsNotExist(err) {
			return false
		}
		// 其他错误（如权限问题），根据需求处理，这里也返回 false
		return false
	}
	// 确保是目录而不是文件
	return info.IsDir()
}

// ListJSONFiles
//
//	@Description: 列出目录及其子目录下所有json文件，按路径名升序返回
//	@param path 目录路径
//	@return []string 文件路径列表
func ListJSONFiles(path string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsJSONFile(d.Name()) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	// 路径名升序即数据集优先级升序
	sort.Strings(files)
	return files, nil
}
