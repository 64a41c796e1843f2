package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/smazurov/framegrab/cmd"
)

func main() {
	// SIGINT/SIGTERM cancel the capture between frames; teardown still runs
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cmd.Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
