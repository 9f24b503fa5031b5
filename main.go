package main

import (
	"techprobe/cmd"
)

func main() {
	cmd.Execute()
}
