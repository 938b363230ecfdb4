package main

import (
	"os"

	"github.com/rmeyers/lotbot/cmd/lotbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
