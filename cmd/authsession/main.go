package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/authsession/internal/app"
)

func main() {
	// Interrupting a web sign-in cancels the pending session
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console := app.NewConsole(os.Stdin, os.Stdout)
	if err := app.Execute(ctx, console, app.LoadConfig, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "authsession: %v\n", err)
		stop()
		os.Exit(1)
	}
}
