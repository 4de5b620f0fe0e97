// Package main is the entry point for the gato pet server and CLI.
// It only hands control to the command tree. NO business logic belongs here.
package main

import (
	"os"

	"github.com/MRamiBalles/GatoVirtual/server/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
