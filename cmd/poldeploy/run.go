package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepnoodle-ai/deploy/pol"
	"github.com/spf13/cobra"
)

func runDeployment(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return wrapExitError(ExitConfig, "failed to load configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return wrapExitError(ExitConfig, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := newPrinter(cmd.OutOrStdout())
	p.header(cfg)

	d, err := pol.NewDeployment(ctx, cfg, pol.SetupOptions{
		Reset:     opts.reset,
		Logger:    newLogger(cmd, opts),
		Callbacks: newConsoleCallbacks(p),
	})
	if err != nil {
		return wrapExitError(ExitFailure, "failed to set up deployment", err)
	}

	startTime := time.Now()
	summary, err := d.Run(ctx)
	duration := time.Since(startTime)
	if err != nil {
		p.failure(d, err, duration)
		return wrapExitError(ExitFailure, "deployment failed", err)
	}
	p.summary(d, summary, duration)
	return nil
}
