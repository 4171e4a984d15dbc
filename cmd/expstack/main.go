package main

import (
	"os"

	"github.com/expstack/expstack/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
