// Package main provides the entry point for kernelgate-cli.
//
// kernelgate-cli drives kernel sessions on a kernelgate server over MCP,
// reads its admin API, manages it over the local socket, and offers an
// interactive REPL bound to one session.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/kernelgate/internal/cli/command"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := command.App()
	if err := app.RunContext(ctx, os.Args); err != nil {
		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
