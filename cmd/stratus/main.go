// Package main is the entry point for the stratus CLI.
package main

import "github.com/stratusio/stratus-cli/internal/cli"

func main() {
	cli.Execute()
}
