package main

import (
	"os"

	"github.com/msto63/mBOT/cmd/mbot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
