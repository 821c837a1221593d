package main

import (
	"os"

	"github.com/jandubois/zkcheck/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		// Failures before a verdict is reached are UNKNOWN.
		os.Exit(3)
	}
}
