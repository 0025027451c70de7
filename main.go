package main

import (
	"os"

	"github.com/aind/wandb-results/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
