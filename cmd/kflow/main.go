package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/birdayz/kflow/cmd/kflow/commands"
)

var version = "dev"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := commands.Execute(ctx, version); err != nil {
		cancel()
		os.Exit(1)
	}
}
