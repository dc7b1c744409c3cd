// Package main is the entry point for the autopilot CLI.
package main

import (
	"os"

	"github.com/ninjaos/autopilot/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
