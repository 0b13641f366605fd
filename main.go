package main

import (
	"os"

	"github.com/charmbracelet/log"

	"github.com/theapemachine/trill-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}
