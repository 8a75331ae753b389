package main

import (
	"os"

	"github.com/quillorm/quill/pkg/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
