// Package pol deploys the Proof-of-Liquidity contracts to a BeaconKit chain.
//
// The deployment is a fixed sequence of ten steps. Each step drives forge or
// cast, extracts the addresses they print, and patches the scripts used by
// later steps.
package pol

import (
	"context"
	"log/slog"
	"time"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/foundry"
	"github.com/deepnoodle-ai/deploy/patch"
	"github.com/deepnoodle-ai/deploy/runner"
)

// WorkflowName identifies the deployment in logs and activity entries
const WorkflowName = "pol-deployment"

// DeployerOptions configures a Deployer
type DeployerOptions struct {
	Config  Config
	Runner  runner.Runner
	Patcher *patch.Patcher
	Logger  *slog.Logger

	// Sleep waits between balance samples. Defaults to a timer that honors
	// context cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Deployer implements the deployment steps
type Deployer struct {
	cfg     Config
	forge   *foundry.Forge
	cast    *foundry.Cast
	patcher *patch.Patcher
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	verification *Verification
}

// NewDeployer returns a new Deployer
func NewDeployer(opts DeployerOptions) *Deployer {
	if opts.Logger == nil {
		opts.Logger = deploy.NewDiscardLogger()
	}
	if opts.Patcher == nil {
		opts.Patcher = patch.New(patch.Options{
			Root:   opts.Config.WorkDir,
			DryRun: opts.Config.DryRun,
			Strict: opts.Config.StrictPatch,
			Logger: opts.Logger,
		})
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	signer := foundry.Signer{Address: opts.Config.EthFrom, PrivateKey: opts.Config.EthFromPK}
	return &Deployer{
		cfg:     opts.Config,
		forge:   foundry.NewForge(opts.Runner, signer, opts.Config.RPCURL),
		cast:    foundry.NewCast(opts.Runner, signer, opts.Config.RPCURL),
		patcher: opts.Patcher,
		logger:  opts.Logger,
		sleep:   opts.Sleep,
	}
}

type stepDef struct {
	name        string
	description string
	fn          deploy.ExecuteActivityFunc
}

func (d *Deployer) definitions() []stepDef {
	return []stepDef{
		{StepPredictAddresses, "Predict contract addresses and update POLAddresses.sol", d.predictAddresses},
		{StepValidateBGTConfig, "Check the predicted BGT and Distributor addresses", d.validateBGTConfig},
		{StepDeployBGT, "Deploy the BGT token", d.deployBGT},
		{StepDeployPoL, "Deploy BeraChef, BlockRewardController, Distributor and RewardVaultFactory", d.deployPoL},
		{StepChangeParameters, "Apply PoL economic parameters", d.changeParameters},
		{StepDeployTokens, "Deploy staking tokens", d.deployTokens},
		{StepDeployVaults, "Deploy a reward vault per staking token", d.deployVaults},
		{StepWhitelistVaults, "Whitelist reward vaults and cap their weight", d.whitelistVaults},
		{StepSetAllocations, "Set the default reward allocation", d.setAllocations},
		{StepVerifyDeployment, "Check that BGT is being distributed", d.verifyDeployment},
	}
}

// Steps returns the deployment steps in order
func (d *Deployer) Steps() []*deploy.Step {
	defs := d.definitions()
	steps := make([]*deploy.Step, 0, len(defs))
	for _, def := range defs {
		steps = append(steps, &deploy.Step{Name: def.name, Description: def.description})
	}
	return steps
}

// Activities returns the activity implementing each step
func (d *Deployer) Activities() []deploy.Activity {
	defs := d.definitions()
	activities := make([]deploy.Activity, 0, len(defs))
	for _, def := range defs {
		activities = append(activities, deploy.NewActivityFunction(def.name, def.fn))
	}
	return activities
}

// Workflow returns the deployment workflow
func (d *Deployer) Workflow() (*deploy.Workflow, error) {
	return deploy.New(deploy.Options{
		Name:        WorkflowName,
		Description: "Proof-of-Liquidity contract deployment",
		Steps:       d.Steps(),
	})
}

// Verification returns the outcome of the verify step, if it ran
func (d *Deployer) Verification() *Verification {
	return d.verification
}

// StepNames returns the deployment step names in order
func StepNames() []string {
	return (&Deployer{}).stepNames()
}

func (d *Deployer) stepNames() []string {
	defs := d.definitions()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.name)
	}
	return names
}
