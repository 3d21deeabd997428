// Command ideactl manages the users of an idea generator store and mints session tokens for them.
package main

import (
	"os"

	"github.com/fatih/color"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}
