package main

import (
	"os"

	"github.com/quantum-n3bula/console/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
