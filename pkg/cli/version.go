package cli

import (
	"fmt"
	"runtime"
)

// 模板版本信息，使用 var 使其可以通过 ldflags 修改
var defaultVersion = "v0.1.0"
var defaultBuildDate = "2026-08-27"
var defaultGitCommit = "none"

// DisplayVersion 打印版本信息
func DisplayVersion() {
	fmt.Printf("  %s version information: \n", "techprobe")
	fmt.Printf("  Version:\t%s\n", defaultVersion)
	fmt.Printf("  Git Commit:\t%s\n", defaultGitCommit)
	fmt.Printf("  Go Version:\t%s\n", runtime.Version())
	fmt.Printf("  OS/Arch:\t%s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Build Time:\t%s\n", defaultBuildDate)
}
