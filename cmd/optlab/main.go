// Command optlab prices options and analyzes option strategies.
package main

import (
	"fmt"
	"os"

	"options-lab/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
