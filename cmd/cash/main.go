package main

import (
	"os"

	"github.com/lugondev/go-cash/cmd/cash/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
