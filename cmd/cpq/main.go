package main

import (
	"os"

	"github.com/solatis/cpq/cmd/cpq/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
