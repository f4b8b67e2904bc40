package main

import (
	"os"

	"github.com/sabaio/qaeval/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
