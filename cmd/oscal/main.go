package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/internal/cli"
	"github.com/UMass-OpenSim/opensim-marker-place-toolbox/pkg/logger"
)

func main() {
	// Interrupting a long calibration stops it cleanly: the current phase
	// returns its best-so-far placement before the process exits.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}
