// Package main is the entry point for the deployer CLI.
//
// deployer turns the application's source tree into a Lambda deployment
// archive and hands it to terraform. Provisioning only runs when the
// deployment configuration is present.
//
// Commands: deploy, build, clean, publish, check, init.
//
// Exit status is 0 on success, 2 when the deployment configuration is
// missing and 1 for any other failure.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lynkia/deployer/cmd/deployer/commands"
	"github.com/lynkia/deployer/internal/pipeline"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(pipeline.ExitCode(err))
	}
}
