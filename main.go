package main

import (
	"os"

	"github.com/opencontextprotocol/ocp-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
