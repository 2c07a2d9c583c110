package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hkcovid/internal/cli"
)

const (
	// exitFail is the exit code if the program fails.
	exitFail = 1
	// exitSuccess is the exit code if the program succeeds.
	exitSuccess = 0
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "hkcovid: %v\n", err)
		os.Exit(exitFail)
	}
	os.Exit(exitSuccess)
}
