// Package main is the entry point for the dunesync CLI binary.
package main

import (
	"os"

	cli "dune-sync/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
