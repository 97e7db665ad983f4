package main

import (
	"os"

	"github.com/rustyeddy/genesis/cmd/genesis/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
