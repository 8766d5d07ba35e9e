// cmd/diskpuri/main.go
//
// Entry point for the diskpuri CLI. Running `diskpuri` with no arguments
// launches the interactive TUI; `diskpuri run` executes a schema headless.

package main

import (
	"errors"
	"fmt"
	"os"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitCancelled = 130
)

// errCancelled marks a run stopped by the user rather than by a fault.
var errCancelled = errors.New("run cancelled")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Fprintln(os.Stderr, "diskpuri: run cancelled")
			os.Exit(exitCancelled)
		}
		fmt.Fprintf(os.Stderr, "diskpuri: %v\n", err)
		os.Exit(exitFailure)
	}
	os.Exit(exitOK)
}
