package pol

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"
)

// Default connection settings match a local BeaconKit devnet
const (
	DefaultRPCURL         = "http://localhost:8545"
	DefaultEthFrom        = "0x20f33ce90a13a4b5e7697e3544c3083b8f8a51d4"
	DefaultEthFromPK      = "0xfffdbb37105441e14b0ee6330d855d8504ff39e705c3afa8f859ac9865f99306"
	DefaultFoundryProfile = "deploy"
	DefaultStateFile      = "deployment_state.json"
)

// Config holds the settings for one deployment run
type Config struct {
	RPCURL            string `yaml:"rpc_url" json:"rpc_url"`
	EthFrom           string `yaml:"eth_from" json:"eth_from"`
	EthFromPK         string `yaml:"eth_from_pk" json:"-"`
	FoundryProfile    string `yaml:"foundry_profile" json:"foundry_profile"`
	IsTestnet         bool   `yaml:"is_testnet" json:"is_testnet"`
	UseSoftwareWallet bool   `yaml:"use_software_wallet" json:"use_software_wallet"`
	DryRun            bool   `yaml:"dry_run" json:"dry_run"`
	BackupFiles       bool   `yaml:"backup_files" json:"backup_files"`
	StrictPatch       bool   `yaml:"strict_patch" json:"strict_patch"`
	StateFile         string `yaml:"state_file" json:"state_file"`

	// WorkDir is the contracts repository root. Scripts, patched files and
	// relative output paths are resolved against it.
	WorkDir    string `yaml:"work_dir" json:"work_dir"`
	LogsDir    string `yaml:"logs_dir" json:"logs_dir,omitempty"`
	SummaryDir string `yaml:"summary_dir" json:"summary_dir,omitempty"`

	Paths Paths `yaml:"paths" json:"paths"`
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() Config {
	return Config{
		RPCURL:            DefaultRPCURL,
		EthFrom:           DefaultEthFrom,
		EthFromPK:         DefaultEthFromPK,
		FoundryProfile:    DefaultFoundryProfile,
		IsTestnet:         false,
		UseSoftwareWallet: true,
		BackupFiles:       true,
		StateFile:         DefaultStateFile,
		WorkDir:           ".",
		Paths:             DefaultPaths(),
	}
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys absent from
// the file keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks the connection settings and that the private key belongs
// to the sender address.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file is required")
	}
	if !strings.HasPrefix(c.EthFrom, "0x") || !common.IsHexAddress(c.EthFrom) {
		return fmt.Errorf("invalid sender address %q", c.EthFrom)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(c.EthFromPK, "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}
	derived := crypto.PubkeyToAddress(key.PublicKey)
	if derived != common.HexToAddress(c.EthFrom) {
		return fmt.Errorf("private key belongs to %s, not sender %s", derived.Hex(), c.EthFrom)
	}
	return nil
}

// Environment returns the variables exposed to forge and cast
func (c Config) Environment() map[string]string {
	return map[string]string{
		"FOUNDRY_PROFILE":     c.FoundryProfile,
		"IS_TESTNET":          strconv.FormatBool(c.IsTestnet),
		"USE_SOFTWARE_WALLET": strconv.FormatBool(c.UseSoftwareWallet),
		"ETH_FROM":            c.EthFrom,
		"RPC_URL":             c.RPCURL,
		"ETH_FROM_PK":         c.EthFromPK,
	}
}

// Resolve returns path relative to the work directory unless it is absolute
func (c Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.WorkDir, path)
}

// StatePath returns the resolved state file location
func (c Config) StatePath() string {
	return c.Resolve(c.StateFile)
}
