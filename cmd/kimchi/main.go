// Command kimchi indexes a code repository and answers questions about it.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Version information (set by goreleaser)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A .env file is optional; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Ignoring .env: %v", err)
	}

	cli.SetVersion(fmt.Sprintf("%s (commit %s, built %s)", version, commit, date))

	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
