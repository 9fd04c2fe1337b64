package main

import (
	"os"

	"github.com/mcavallo/minos/cmd/minosfs/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("%v", err)
		os.Exit(1)
	}
}
