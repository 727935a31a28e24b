// Package main is the entry point for the boardctl CLI.
package main

import "github.com/wordflux/boardctl/internal/cli"

func main() {
	cli.Execute()
}
