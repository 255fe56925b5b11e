package main

import (
	"os"

	"github.com/zotseek/zotseek/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
