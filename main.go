package main

import (
	"os"

	"github.com/nashr-app/nashr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
