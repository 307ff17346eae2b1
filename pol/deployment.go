package pol

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/patch"
	"github.com/deepnoodle-ai/deploy/runner"
)

// SetupOptions configures NewDeployment
type SetupOptions struct {
	// Reset discards persisted progress before running
	Reset bool

	Logger    *slog.Logger
	Callbacks deploy.ExecutionCallbacks

	// Runner overrides the command runner built from the config
	Runner runner.Runner

	// Sleep overrides the wait between verification samples
	Sleep func(ctx context.Context, d time.Duration) error

	Now func() time.Time
}

// Deployment is a fully wired deployment run
type Deployment struct {
	Config    Config
	Execution *deploy.Execution
	Deployer  *Deployer
	Store     deploy.StateStore
	Patcher   *patch.Patcher
	BackupDir string

	// SummaryPath is set once the summary has been written
	SummaryPath string

	logger *slog.Logger
	now    func() time.Time
}

// NewDeployment validates cfg and wires the runner, patcher, state store and
// execution for one run.
//
// In dry-run mode nothing on disk changes: commands are only logged, patches
// are computed but not written, and progress goes to an in-memory store seeded
// from the state file.
func NewDeployment(ctx context.Context, cfg Config, opts SetupOptions) (*Deployment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = deploy.NewDiscardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger

	store, err := openStateStore(ctx, cfg, opts.Reset, logger)
	if err != nil {
		return nil, err
	}

	r := opts.Runner
	if r == nil {
		r = runner.New(runner.Options{
			Dir:      cfg.WorkDir,
			Env:      cfg.Environment(),
			Simulate: cfg.DryRun,
			Logger:   logger,
			Secrets:  []string{cfg.EthFromPK},
		})
	}

	backupName := fmt.Sprintf("backups_%s", opts.Now().UTC().Format(summaryTimeFormat))
	patcher := patch.New(patch.Options{
		Root:      cfg.WorkDir,
		BackupDir: backupName,
		Backup:    cfg.BackupFiles,
		DryRun:    cfg.DryRun,
		Strict:    cfg.StrictPatch,
		Logger:    logger,
	})

	deployer := NewDeployer(DeployerOptions{
		Config:  cfg,
		Runner:  r,
		Patcher: patcher,
		Logger:  logger,
		Sleep:   opts.Sleep,
	})
	wf, err := deployer.Workflow()
	if err != nil {
		return nil, err
	}

	var activityLogger deploy.ActivityLogger = deploy.NewNullActivityLogger()
	if cfg.LogsDir != "" {
		activityLogger = deploy.NewFileActivityLogger(cfg.Resolve(cfg.LogsDir))
	}

	execution, err := deploy.NewExecution(deploy.ExecutionOptions{
		Workflow:           wf,
		Activities:         deployer.Activities(),
		StateStore:         store,
		ActivityLogger:     activityLogger,
		Logger:             logger,
		ExecutionCallbacks: opts.Callbacks,
		Now:                opts.Now,
	})
	if err != nil {
		return nil, err
	}

	return &Deployment{
		Config:    cfg,
		Execution: execution,
		Deployer:  deployer,
		Store:     store,
		Patcher:   patcher,
		BackupDir: cfg.Resolve(backupName),
		logger:    logger,
		now:       opts.Now,
	}, nil
}

func openStateStore(ctx context.Context, cfg Config, reset bool, logger *slog.Logger) (deploy.StateStore, error) {
	fileStore, err := deploy.NewFileStateStore(cfg.StatePath())
	if err != nil {
		return nil, err
	}

	if !cfg.DryRun {
		if reset {
			if err := fileStore.Delete(ctx); err != nil {
				return nil, err
			}
			logger.Info("deployment state reset", "path", fileStore.Path())
		}
		return fileStore, nil
	}

	if reset {
		logger.Info("[dry run] would reset deployment state", "path", fileStore.Path())
		return deploy.NewMemoryStateStore(nil), nil
	}
	prior, err := fileStore.Load(ctx)
	if err != nil {
		return nil, err
	}
	return deploy.NewMemoryStateStore(prior), nil
}

// Run executes the deployment. After a successful real run the summary is
// written to the summary directory.
func (d *Deployment) Run(ctx context.Context) (*Summary, error) {
	d.logger.Info("starting PoL deployment",
		"run_id", d.Execution.ID(),
		"rpc_url", d.Config.RPCURL,
		"sender", d.Config.EthFrom,
		"dry_run", d.Config.DryRun)

	if err := d.Execution.Run(ctx); err != nil {
		return nil, err
	}

	now := d.now()
	summary := NewSummary(d.Config, d.Execution.State(), d.Deployer.Verification(), now)
	if d.Config.DryRun {
		return summary, nil
	}
	path, err := WriteSummary(d.Config.Resolve(d.summaryDir()), summary, now)
	if err != nil {
		return summary, err
	}
	d.SummaryPath = path
	d.logger.Info("deployment summary saved", "path", path)
	return summary, nil
}

func (d *Deployment) summaryDir() string {
	if d.Config.SummaryDir == "" {
		return "."
	}
	return filepath.Clean(d.Config.SummaryDir)
}

// LoadState reads the persisted state without modifying it. It returns an
// empty state when no deployment has run.
func LoadState(ctx context.Context, cfg Config) (*deploy.State, error) {
	store, err := deploy.NewFileStateStore(cfg.StatePath())
	if err != nil {
		return nil, err
	}
	state, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return deploy.NewState(), nil
	}
	return state, nil
}
