package main

import (
	"os"

	"github.com/wesleyorama2/gabsload/internal/cli"
)

// Main runs the CLI and returns the process exit code. It is exported so
// the exit behavior can be tested.
func Main() int {
	if err := cli.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(Main())
}
