package main

import (
	"os"

	"github.com/youruser/tokenizer/cmd/tokenizer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
