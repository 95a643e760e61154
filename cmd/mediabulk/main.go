package main

import (
	"os"

	"github.com/technostationary/mediabulk/cmd/mediabulk/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
