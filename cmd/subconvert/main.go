package main

import (
	"fmt"
	"os"

	"gitlab.com/vcs-tools/subconvert/internal/cli/subconvert"
)

func main() {
	if err := subconvert.NewApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
