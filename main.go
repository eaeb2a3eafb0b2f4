package main

import (
	"os"

	"github.com/PolarWolf314/cipherdesk/cmd"
)

func main() {
	if err := cmd.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
