package cli

import (
	"fmt"
)

// DisplayBanner 打印启动横幅
func DisplayBanner() {
	fmt.Print(Banner)
	fmt.Printf("    Version:%s  BuildDate:%s\n\n", defaultVersion, defaultBuildDate)
}

var Banner = `   __            __                        __
  / /____  _____/ /_  ____  _________  ____/ /_  ___
 / __/ _ \/ ___/ __ \/ __ \/ ___/ __ \/ __  / _ \/ _ \
/ /_/  __/ /__/ / / / /_/ / /  / /_/ / /_/ /  __/  __/
\__/\___/\___/_/ /_/ .___/_/   \____/\__,_/\___/\___/
                  /_/
`
