package main

import (
	"os"

	"pfm/internal/cli"
	"pfm/internal/commands"
)

func main() {
	cli.LoadEnvFile()

	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
