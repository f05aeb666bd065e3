package main

import (
	"os"

	"github.com/felipestanzani/beyondsight/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
