package main

import (
	"os"

	"github.com/phillip-england/lotdesk/internal/cli"
)

func main() {
	// Errors are printed by the command that failed.
	if err := cli.Execute(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}
