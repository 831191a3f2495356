// Command devbridge runs the local development bridge.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/devbridge/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
