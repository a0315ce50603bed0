package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"lora-control/internal/cli"
)

const (
	exitSuccess     = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
	version         = "1.0.0"
)

func main() {
	cli.Version = version

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 2)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigc
		cancel()
		<-sigc
		fmt.Fprintln(os.Stderr, "Interrupted (Ctrl-C)")
		os.Exit(exitInterrupted)
	}()

	os.Exit(run(ctx, os.Args[1:]))
}

func run(ctx context.Context, args []string) int {
	err := cli.ExecuteArgs(ctx, args)
	interrupted := ctx.Err() != nil
	switch {
	case err == nil && interrupted:
		return exitInterrupted
	case err == nil:
		return exitSuccess
	}

	var ue cli.UsageError
	switch {
	case errors.As(err, &ue):
		fmt.Fprintln(os.Stderr, ue.Msg)
		return exitUsage
	case interrupted:
		fmt.Fprintln(os.Stderr, "Interrupted (Ctrl-C)")
		return exitInterrupted
	case errors.Is(err, cli.ErrReported):
		return exitFailure
	}
	fmt.Fprintln(os.Stderr, "Error:", err.Error())
	return exitFailure
}
