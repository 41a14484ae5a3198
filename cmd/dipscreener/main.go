package main

import (
	"os"

	"github.com/wonny/dipscreener/cmd/dipscreener/commands"
)

// main is the entry point for the dipscreener CLI
// ⭐ Exit codes: 0 success, 3 nothing to do, 2 partial, 1 failure
func main() {
	os.Exit(commands.Execute())
}
