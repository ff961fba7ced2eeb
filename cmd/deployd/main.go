// Package main is the entry point for deployd.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/deployd/internal/cli"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	v := fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	if err := cli.Execute(context.Background(), v, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
