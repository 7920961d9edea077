// Package main is the entry point for pgedge-rrbench.
package main

import (
	"fmt"
	"os"

	"github.com/pgEdge/pgedge-rrbench/internal/cli"

	// Register backends
	_ "github.com/pgEdge/pgedge-rrbench/internal/backend/memory"
	_ "github.com/pgEdge/pgedge-rrbench/internal/backend/postgres"
	_ "github.com/pgEdge/pgedge-rrbench/internal/backend/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}
}
