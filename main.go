package main

import (
	"os"

	"github.com/pboueri/assetc/src/cmd"
	"github.com/pboueri/assetc/src/logger"
)

func main() {
	// Initialize logger with defaults first; commands reload it from the
	// project config.
	logger.Initialize()

	if err := cmd.Execute(); err != nil {
		logger.Error("Command failed: %v", err)
		os.Exit(1)
	}
}
