package main

import (
	"os"

	"github.com/monagent/chainpilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
