package pol

// Paths locates the forge scripts and the configuration files patched
// between steps, relative to the work directory.
type Paths struct {
	PredictAddressesScript string `yaml:"predict_addresses_script" json:"predict_addresses_script"`
	AddressesFile          string `yaml:"addresses_file" json:"addresses_file"`
	DeployBGTScript        string `yaml:"deploy_bgt_script" json:"deploy_bgt_script"`
	DeployPoLScript        string `yaml:"deploy_pol_script" json:"deploy_pol_script"`
	ChangeParametersScript string `yaml:"change_parameters_script" json:"change_parameters_script"`
	DeployTokenScript      string `yaml:"deploy_token_script" json:"deploy_token_script"`
	DeployVaultScript      string `yaml:"deploy_vault_script" json:"deploy_vault_script"`
	WhitelistScript        string `yaml:"whitelist_script" json:"whitelist_script"`
	AllocationScript       string `yaml:"allocation_script" json:"allocation_script"`

	// AllocationContract selects the contract within AllocationScript
	AllocationContract string `yaml:"allocation_contract" json:"allocation_contract"`
}

// DefaultPaths returns the layout of the contracts repository
func DefaultPaths() Paths {
	return Paths{
		PredictAddressesScript: "script/pol/POLPredictAddresses.s.sol",
		AddressesFile:          "script/pol/POLAddresses.sol",
		DeployBGTScript:        "script/pol/deployment/2_DeployBGT.s.sol",
		DeployPoLScript:        "script/pol/deployment/3_DeployPoL.s.sol",
		ChangeParametersScript: "script/pol/actions/ChangePOLParameters.s.sol",
		DeployTokenScript:      "script/misc/testnet/DeployToken.s.sol",
		DeployVaultScript:      "script/pol/actions/DeployRewardVault.s.sol",
		WhitelistScript:        "script/pol/actions/WhitelistRewardVault.s.sol",
		AllocationScript:       "script/pol/actions/SetDefaultRewardAllocation.s.sol",
		AllocationContract:     "WhitelistIncentiveTokenScript",
	}
}

// AllocationTarget is the forge target for the allocation script
func (p Paths) AllocationTarget() string {
	if p.AllocationContract == "" {
		return p.AllocationScript
	}
	return p.AllocationScript + ":" + p.AllocationContract
}
