package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/platinummonkey/ssoadmin/pkg/cli"
	"github.com/platinummonkey/ssoadmin/pkg/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	loggers := cli.NewLoggers(cfg.Observability, os.Stderr)
	defer loggers.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewApp(ctx, cfg, loggers, cli.AppOptions{})
	if err != nil {
		loggers.Log.WithError(err).Error("failed to initialize")
		return 1
	}
	defer func() {
		if err := app.Close(); err != nil {
			loggers.Log.WithError(err).Warn("shutdown error")
		}
	}()

	rootCmd := cli.NewRootCommand(app)
	if err := rootCmd.Execute(os.Args[1:]); err != nil {
		cli.PrintError(os.Stderr, err)
		return 1
	}
	return 0
}
