// Package main is the entry point for the marvin CLI application.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danielolaszy/marvin/cmd"
	"github.com/danielolaszy/marvin/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// main executes the root command and exits with status 1 on any error.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	logging.Debug("starting marvin", "version", version)

	err := cmd.Execute(ctx)
	stop()
	if err != nil {
		logging.Error("command execution failed", "error", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
