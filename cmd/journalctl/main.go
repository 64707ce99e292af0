package main

import (
	"os"

	"github.com/hustariz/rascarobingo/cmd/journalctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
