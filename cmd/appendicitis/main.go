// Command appendicitis trains the pediatric appendicitis models and scores
// new patients.
//
// Usage:
//
//	appendicitis [flags] [train|infer|check]
//
// Without a command an interactive menu is shown.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/uemura/appendicitis/internal/cli"
	"github.com/uemura/appendicitis/internal/config"
	"github.com/uemura/appendicitis/pkg/log"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "appendicitis: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return err
	}
	if err := log.SetupLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return cli.New(cfg, os.Stdin, os.Stdout).Run(ctx)
}
