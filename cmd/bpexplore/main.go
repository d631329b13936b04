package main

import (
	"os"

	"github.com/florianmw/bpexplore/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
