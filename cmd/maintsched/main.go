package main

import (
	"os"

	"github.com/fieldops/maintsched/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
