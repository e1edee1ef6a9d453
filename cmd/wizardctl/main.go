package main

import (
	"os"

	"deedwizard/cmd/wizardctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
