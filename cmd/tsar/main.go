// Package main implements the tsar CLI: per-function construction of
// source control flow graphs, control dependence graphs and program
// dependence graphs for C sources, with DOT, JSON and msgpack output.
package main

import (
	"fmt"
	"os"

	"github.com/oUaTEnCi/tsar/cmd/tsar/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
