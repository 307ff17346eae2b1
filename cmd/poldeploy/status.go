package main

import (
	"github.com/deepnoodle-ai/deploy/pol"
	"github.com/spf13/cobra"
)

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show saved deployment progress",
		Long: `Show the completed steps, the step a failed run stopped at, and the
addresses recorded so far. The state file is only read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, opts)
			if err != nil {
				return wrapExitError(ExitConfig, "failed to load configuration", err)
			}
			state, err := pol.LoadState(cmd.Context(), cfg)
			if err != nil {
				return wrapExitError(ExitFailure, "failed to read deployment state", err)
			}
			newPrinter(cmd.OutOrStdout()).status(cfg.StatePath(), state)
			return nil
		},
	}
}
