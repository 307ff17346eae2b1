package main

import (
	"log/slog"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/pol"
	"github.com/spf13/cobra"
)

// rootOptions holds the flags of every command
type rootOptions struct {
	configFile string
	workDir    string
	stateFile  string
	verbose    bool
	jsonLogs   bool

	rpcURL      string
	ethFrom     string
	ethFromPK   string
	dryRun      bool
	noBackup    bool
	reset       bool
	strictPatch bool
	logsDir     string
	summaryDir  string
}

// NewRootCommand creates the poldeploy command. Running it without a
// subcommand performs the deployment.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "poldeploy",
		Short: "Deploy the Proof-of-Liquidity contracts",
		Long: `Deploy the Proof-of-Liquidity contracts to a BeaconKit chain.

The deployment runs ten fixed steps. Progress is saved after every step, so a
failed or interrupted deployment resumes from where it stopped when run again.

Example:
  poldeploy --workdir ./contracts
  poldeploy --workdir ./contracts --dry-run
  poldeploy --workdir ./contracts --rpc-url http://node:8545 --reset`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDeployment(cmd, opts)
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&opts.configFile, "config", "", "YAML file with deployment settings")
	persistent.StringVar(&opts.workDir, "workdir", ".", "contracts repository root")
	persistent.StringVar(&opts.stateFile, "state-file", pol.DefaultStateFile, "deployment state file")
	persistent.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	persistent.BoolVar(&opts.jsonLogs, "json-logs", false, "write logs as JSON")

	flags := cmd.Flags()
	flags.StringVar(&opts.rpcURL, "rpc-url", pol.DefaultRPCURL, "RPC endpoint of the chain")
	flags.StringVar(&opts.ethFrom, "eth-from", pol.DefaultEthFrom, "deployer address")
	flags.StringVar(&opts.ethFromPK, "eth-from-pk", pol.DefaultEthFromPK, "deployer private key")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "log commands and patches without executing or writing anything")
	flags.BoolVar(&opts.noBackup, "no-backup", false, "do not back up files before patching them")
	flags.BoolVar(&opts.reset, "reset", false, "discard saved progress and start from the first step")
	flags.BoolVar(&opts.strictPatch, "strict-patch", false, "fail when a constant to patch is not found")
	flags.StringVar(&opts.logsDir, "logs-dir", "", "directory for the per-run step activity log")
	flags.StringVar(&opts.summaryDir, "summary-dir", "", "directory for the deployment summary (default: workdir)")

	cmd.AddCommand(newStatusCommand(opts))
	return cmd
}

// buildConfig layers the config file and explicitly set flags over the
// defaults.
func buildConfig(cmd *cobra.Command, opts *rootOptions) (pol.Config, error) {
	cfg := pol.DefaultConfig()
	if opts.configFile != "" {
		if err := pol.LoadConfigFile(opts.configFile, &cfg); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	setString := func(name string, dst *string, value string) {
		if flags.Changed(name) {
			*dst = value
		}
	}
	setString("workdir", &cfg.WorkDir, opts.workDir)
	setString("state-file", &cfg.StateFile, opts.stateFile)
	setString("rpc-url", &cfg.RPCURL, opts.rpcURL)
	setString("eth-from", &cfg.EthFrom, opts.ethFrom)
	setString("eth-from-pk", &cfg.EthFromPK, opts.ethFromPK)
	setString("logs-dir", &cfg.LogsDir, opts.logsDir)
	setString("summary-dir", &cfg.SummaryDir, opts.summaryDir)
	if flags.Changed("dry-run") {
		cfg.DryRun = opts.dryRun
	}
	if flags.Changed("no-backup") {
		cfg.BackupFiles = !opts.noBackup
	}
	if flags.Changed("strict-patch") {
		cfg.StrictPatch = opts.strictPatch
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, opts *rootOptions) *slog.Logger {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	return deploy.NewLogger(deploy.LoggerOptions{
		Writer: cmd.ErrOrStderr(),
		Level:  level,
		JSON:   opts.jsonLogs,
	})
}
