package main

import (
	"os"

	"github.com/temirov/gptcontext/internal/cli"
)

// main is the entry point for the gptcontext command.
func main() {
	os.Exit(cli.Execute())
}
