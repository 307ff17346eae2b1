package pol

import (
	"fmt"
	"strconv"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/extract"
	"github.com/deepnoodle-ai/deploy/foundry"
	"github.com/deepnoodle-ai/deploy/patch"
)

func (d *Deployer) predictAddresses(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("predicting contract addresses")

	output, err := d.forge.Script(ctx, d.cfg.Paths.PredictAddressesScript)
	if err != nil {
		return nil, err
	}

	found := map[string]string{}
	for _, p := range predictedAddressPatterns {
		addr, ok := extract.Find(output, p.pattern)
		if !ok {
			logger.Warn("predicted address not found in output", "name", p.key, "error", deploy.NewExtractionMiss(p.pattern.Name()))
			continue
		}
		found[p.key] = addr
		logger.Info("predicted address", "name", p.key, "address", addr)
	}
	if len(found) == 0 {
		return &deploy.StepResult{}, nil
	}

	// Patch with everything known so far, not only this run's matches.
	updates := map[string]string{}
	for _, p := range predictedAddressPatterns {
		if addr, ok := ctx.State().Address(p.key); ok {
			updates[p.key] = addr
		}
	}
	for key, addr := range found {
		updates[key] = addr
	}
	if _, err := d.patcher.Patch(d.cfg.Paths.AddressesFile, updates); err != nil {
		return nil, err
	}
	return &deploy.StepResult{Addresses: found, Output: output}, nil
}

func (d *Deployer) validateBGTConfig(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("validating BGT configuration")

	bgt, hasBGT := ctx.State().Address(AddrBGT)
	distributor, hasDistributor := ctx.State().Address(AddrDistributor)
	if !hasBGT || !hasDistributor {
		logger.Warn("BGT or Distributor address not found, skipping validation")
		return nil, nil
	}
	logger.Info("configured addresses", "bgt", bgt, "distributor", distributor)
	for name, addr := range map[string]string{AddrBGT: bgt, AddrDistributor: distributor} {
		if !extract.IsAddress(addr) {
			logger.Warn("recorded address is malformed", "name", name, "address", addr)
		}
	}

	balance, err := d.cast.Balance(ctx, bgt)
	if err != nil {
		logger.Warn("could not check BGT balance", "error", err)
		return nil, nil
	}
	logger.Info("current BGT balance", "balance", balance)
	return nil, nil
}

func (d *Deployer) deployBGT(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("deploying BGT")

	output, err := d.forge.Script(ctx, d.cfg.Paths.DeployBGTScript)
	if err != nil {
		return nil, err
	}
	result := &deploy.StepResult{Addresses: map[string]string{}, Output: output}
	addr, err := extract.Require(output, bgtDeployedPattern)
	if err != nil {
		logger.Warn("BGT address not found in output", "error", err)
		return result, nil
	}
	result.Addresses[AddrBGTDeployed] = addr
	logger.Info("BGT deployed", "address", addr)
	return result, nil
}

func (d *Deployer) deployPoL(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("deploying PoL contracts")

	output, err := d.forge.Script(ctx, d.cfg.Paths.DeployPoLScript)
	if err != nil {
		return nil, err
	}
	result := &deploy.StepResult{Addresses: map[string]string{}, Output: output}
	for _, p := range deployedContractPatterns {
		addr, err := extract.Require(output, p.pattern)
		if err != nil {
			logger.Warn("contract address not found in output", "contract", p.key, "error", err)
			continue
		}
		result.Addresses[p.key] = addr
		logger.Info("contract deployed", "contract", p.key, "address", addr)
	}
	return result, nil
}

func (d *Deployer) changeParameters(ctx deploy.Context) (*deploy.StepResult, error) {
	ctx.Logger().Info("changing PoL parameters")
	if _, err := d.forge.Script(ctx, d.cfg.Paths.ChangeParametersScript); err != nil {
		return nil, err
	}
	ctx.Logger().Info("PoL parameters updated")
	return nil, nil
}

func (d *Deployer) deployTokens(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("deploying staking tokens", "count", TokenCount)

	tokens := make([]string, 0, TokenCount)
	for i := 1; i <= TokenCount; i++ {
		logger.Info("deploying token", "index", i)
		output, err := d.forge.Script(ctx, d.cfg.Paths.DeployTokenScript,
			foundry.WithSig(deployTokenSig, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		addr, err := extract.Require(output, tokenDeployedPattern)
		if err != nil {
			logger.Warn("token address not found in output", "index", i, "error", err)
			continue
		}
		tokens = append(tokens, addr)
		logger.Info("token deployed", "name", fmt.Sprintf("BST%d", i), "address", addr)
	}

	if err := d.propagateTokens(ctx, tokens); err != nil {
		return nil, err
	}
	return &deploy.StepResult{TokenAddresses: tokens}, nil
}

// propagateTokens writes the token addresses into the vault deployment
// script, but only when every token was deployed.
func (d *Deployer) propagateTokens(ctx deploy.Context, tokens []string) error {
	if len(tokens) != TokenCount {
		ctx.Logger().Warn("not updating vault script, token count mismatch",
			"expected", TokenCount, "got", len(tokens))
		return nil
	}
	_, err := d.patcher.Patch(d.cfg.Paths.DeployVaultScript, positional(tokenConstants, tokens))
	return err
}

func (d *Deployer) deployVaults(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("deploying reward vaults")

	output, err := d.forge.Script(ctx, d.cfg.Paths.DeployVaultScript)
	if err != nil {
		return nil, err
	}
	pairs := extract.FindAll(output, vaultDeployedPattern)
	vaults := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		vaults = append(vaults, pair[0])
		logger.Info("vault deployed", "vault", pair[0], "staking_token", pair[1])
	}
	if len(vaults) == 0 {
		logger.Warn("no vault addresses found in output", "error", deploy.NewExtractionMiss(vaultDeployedPattern.Name()))
	}

	if len(vaults) >= TokenCount {
		if _, err := d.rewriteWhitelist(vaults); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("not updating whitelist script, too few vaults",
			"required", TokenCount, "got", len(vaults))
	}
	return &deploy.StepResult{VaultAddresses: vaults, Output: output}, nil
}

// rewriteWhitelist drops the obsolete USDS vault from the whitelist script and
// fills in the deployed vault addresses. Applying it twice is a no-op.
func (d *Deployer) rewriteWhitelist(vaults []string) (*patch.Report, error) {
	return d.patcher.Rewrite(d.cfg.Paths.WhitelistScript,
		patch.DropLinesContaining(obsoleteVaultName),
		patch.TrimTrailingSeparators(),
		patch.SetConstants(positional(vaultConstants, vaults)),
	)
}

func (d *Deployer) whitelistVaults(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("whitelisting reward vaults")

	vaults := ctx.State().Snapshot().VaultAddresses
	if len(vaults) >= TokenCount {
		if _, err := d.rewriteWhitelist(vaults); err != nil {
			return nil, err
		}
	}

	if _, err := d.forge.Script(ctx, d.cfg.Paths.WhitelistScript); err != nil {
		return nil, err
	}
	logger.Info("vaults whitelisted")

	berachef, ok := ctx.State().FirstAddress(AddrBeraChef, "BeraChef")
	if !ok {
		logger.Warn("BeraChef address not found, skipping max weight per vault")
		return nil, nil
	}
	logger.Info("setting max weight per vault", "berachef", berachef, "weight", MaxWeightPerVault)
	if _, err := d.cast.Send(ctx, berachef, setMaxWeightSig, strconv.Itoa(MaxWeightPerVault)); err != nil {
		return nil, err
	}
	logger.Info("max weight per vault set", "weight", MaxWeightPerVault)
	return nil, nil
}

func (d *Deployer) setAllocations(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("setting default reward allocations")

	edits := []patch.Edit{patch.SetNumbers(weightNameExpr, DefaultAllocationWeight)}
	if vaults := ctx.State().Snapshot().VaultAddresses; len(vaults) >= TokenCount {
		edits = append(edits, patch.SetConstants(positional(vaultConstants, vaults)))
	} else {
		logger.Warn("not updating allocation vault addresses, too few vaults",
			"required", TokenCount, "got", len(vaults))
	}
	if _, err := d.patcher.Rewrite(d.cfg.Paths.AllocationScript, edits...); err != nil {
		return nil, err
	}

	if _, err := d.forge.Script(ctx, d.cfg.Paths.AllocationTarget()); err != nil {
		return nil, err
	}
	logger.Info("default reward allocations set")
	return nil, nil
}

func (d *Deployer) verifyDeployment(ctx deploy.Context) (*deploy.StepResult, error) {
	logger := ctx.Logger()
	logger.Info("verifying BGT distribution")

	bgt, ok := ctx.State().FirstAddress(AddrBGT, AddrBGTDeployed)
	if !ok {
		logger.Warn("BGT address not found, skipping verification")
		d.verification = &Verification{Outcome: VerificationSkipped}
		return nil, nil
	}

	samples := make([]string, 0, VerificationSamples)
	for i := 0; i < VerificationSamples; i++ {
		balance, err := d.cast.Balance(ctx, bgt)
		if err != nil {
			return nil, err
		}
		samples = append(samples, balance)
		logger.Info("BGT contract balance", "check", i+1, "balance", balance)

		if i < VerificationSamples-1 && !d.cfg.DryRun {
			if err := d.sleep(ctx, VerificationInterval); err != nil {
				return nil, err
			}
		}
	}

	verification := &Verification{Address: bgt, Samples: samples, Outcome: evaluateSamples(samples)}
	d.verification = verification
	switch verification.Outcome {
	case VerificationIncreasing:
		logger.Info("BGT distribution verified, contract balance is increasing")
	case VerificationNotIncreasing:
		logger.Warn("BGT contract balance not increasing, distribution may not be working")
	default:
		logger.Warn("BGT verification inconclusive, balances could not be parsed", "samples", samples)
	}

	for _, line := range d.FollowUpInstructions(bgt) {
		logger.Info(line)
	}
	return nil, nil
}

// FollowUpInstructions explains how an operator confirms that their validator
// is earning BGT.
func (d *Deployer) FollowUpInstructions(bgt string) []string {
	return []string{
		"To verify that your validator operator is receiving BGT rewards, run:",
		"  " + d.cast.CallCommand(bgt, balanceOfCallSig, "<OPERATOR_ADDRESS>"),
		"Replace <OPERATOR_ADDRESS> with your validator operator address.",
		"The balance should increase every time the validator produces a block.",
	}
}
