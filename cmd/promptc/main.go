package main

import (
	"os"

	"github.com/teranos/promptc/cmd/promptc/commands"
	"github.com/teranos/promptc/logger"
)

func main() {
	root := commands.NewRootCmd()
	err := root.Execute()
	if err != nil {
		commands.PrintError(os.Stderr, err)
	}
	logger.Cleanup()
	if err != nil {
		os.Exit(1)
	}
}
