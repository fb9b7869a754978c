package main

import (
	"os"

	"github.com/bogband/website/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
