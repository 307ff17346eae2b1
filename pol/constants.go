package pol

import (
	"time"

	"github.com/deepnoodle-ai/deploy/extract"
)

// Step names, in execution order. They are persisted in the state file.
const (
	StepPredictAddresses  = "predict_addresses"
	StepValidateBGTConfig = "validate_bgt_config"
	StepDeployBGT         = "deploy_bgt"
	StepDeployPoL         = "deploy_pol"
	StepChangeParameters  = "change_parameters"
	StepDeployTokens      = "deploy_tokens"
	StepDeployVaults      = "deploy_vaults"
	StepWhitelistVaults   = "whitelist_vaults"
	StepSetAllocations    = "set_allocations"
	StepVerifyDeployment  = "verify_deployment"
)

const (
	// TokenCount is the number of staking tokens deployed, and the number of
	// vaults required before vault addresses are propagated.
	TokenCount = 5

	// VerificationSamples is the number of BGT balance samples taken
	VerificationSamples = 3

	// VerificationInterval separates consecutive balance samples
	VerificationInterval = 5 * time.Second

	// MaxWeightPerVault is set on BeraChef after whitelisting
	MaxWeightPerVault = 2000

	// DefaultAllocationWeight is written to every vault weight constant
	DefaultAllocationWeight = 2000
)

// Logical address names recorded in state
const (
	AddrBeraChef              = "BERACHEF_ADDRESS"
	AddrRewardVaultFactory    = "REWARD_VAULT_FACTORY_ADDRESS"
	AddrBGT                   = "BGT_ADDRESS"
	AddrBlockRewardController = "BLOCK_REWARD_CONTROLLER_ADDRESS"
	AddrDistributor           = "DISTRIBUTOR_ADDRESS"
	AddrBGTDeployed           = "BGT_DEPLOYED"
)

const (
	setMaxWeightSig   = "setMaxWeightPerVault(uint96)"
	deployTokenSig    = "deployBST(uint256)"
	balanceOfCallSig  = "balanceOf(address)(uint256)"
	obsoleteVaultName = "REWARD_VAULT_USDS_HONEY"
	weightNameExpr    = `REWARD_VAULT_\w+_WEIGHT`
)

type namedPattern struct {
	key     string
	pattern *extract.Pattern
}

// predictedAddressPatterns read the address prediction script's output
var predictedAddressPatterns = []namedPattern{
	{AddrBeraChef, extract.AddressAfter("BeraChef:")},
	{AddrRewardVaultFactory, extract.AddressAfter("RewardVaultFactory:")},
	{AddrBGT, extract.AddressAfter("BGT:")},
	{AddrBlockRewardController, extract.AddressAfter("BlockRewardController:")},
	{AddrDistributor, extract.AddressAfter("Distributor:")},
}

var bgtDeployedPattern = extract.AddressAfter("BGT deployed at:")

// deployedContractPatterns read the PoL deployment script's output. Keys are
// the contract names as printed.
var deployedContractPatterns = []namedPattern{
	{"BeraChef", extract.AddressAfter("BeraChef deployed at:")},
	{"BlockRewardController", extract.AddressAfter("BlockRewardController deployed at:")},
	{"Distributor", extract.AddressAfter("Distributor deployed at:")},
	{"RewardVaultFactory", extract.AddressAfter("RewardVaultFactory deployed at:")},
}

var tokenDeployedPattern = extract.AddressAfter("BST deployed at:")

var vaultDeployedPattern = extract.MustCompile("RewardVault deployed at",
	`RewardVault deployed at\s+(`+extract.AddressExpr+`)\s+for staking token\s+(`+extract.AddressExpr+`)`)

// tokenConstants name the staking token constants in the vault deployment
// script, in token deployment order.
var tokenConstants = [TokenCount]string{
	"LP_BERA_HONEY",
	"LP_BERA_ETH",
	"LP_BERA_WBTC",
	"LP_USDC_HONEY",
	"LP_BEE_HONEY",
}

// vaultConstants name the vault constants in the whitelist and allocation
// scripts, in vault deployment order.
var vaultConstants = [TokenCount]string{
	"REWARD_VAULT_BERA_HONEY",
	"REWARD_VAULT_BERA_ETH",
	"REWARD_VAULT_BERA_WBTC",
	"REWARD_VAULT_USDC_HONEY",
	"REWARD_VAULT_BEE_HONEY",
}

// positional maps the first len(names) values onto names
func positional(names [TokenCount]string, values []string) map[string]string {
	updates := make(map[string]string, len(names))
	for i, name := range names {
		updates[name] = values[i]
	}
	return updates
}
