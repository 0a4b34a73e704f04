package main

import (
	"os"

	"github.com/saxon-wu/living/internal/cli"
)

func main() {
	if err := cli.NewRootCommand(cli.FromConfig).Execute(); err != nil {
		os.Exit(1)
	}
}
