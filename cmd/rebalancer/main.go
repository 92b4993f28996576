package main

import (
	"os"

	"github.com/rustyeddy/rebalancer/cmd/rebalancer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
