// Package main is the entry point for the peupgrade CLI.
//
// peupgrade upgrades a running Puppet Enterprise installation, including
// HA topologies with a replica and compilers in two availability groups,
// one availability group at a time.
//
// Commands: upgrade, plan, install, init.
//
// For detailed usage information, run:
//
//	peupgrade --help
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/imamik/peupgrade/cmd/peupgrade/commands"
	"github.com/imamik/peupgrade/internal/installer"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	commands.SetVersionInfo(version, commit, date)
	err := commands.Root().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode passes installer exit codes through.
func exitCode(err error) int {
	var exitErr *installer.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
