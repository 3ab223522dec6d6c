// Command polystore applies catalog declarations and plans scenarios.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/polystore/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
