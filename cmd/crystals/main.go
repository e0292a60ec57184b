package main

import (
	"os"

	"github.com/lazypower/crystals/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
