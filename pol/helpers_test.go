package pol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/runner"
	"github.com/stretchr/testify/require"
)

// fakeRunner replays scripted stdout keyed by command. Forge commands are
// keyed by script path plus any --sig arguments, cast commands by subcommand.
// The last queued output for a key repeats.
type fakeRunner struct {
	mutex     sync.Mutex
	calls     [][]string
	responses map[string][]string
	failures  map[string]error
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		responses: map[string][]string{},
		failures:  map[string]error{},
	}
}

func (f *fakeRunner) respond(key string, outputs ...string) *fakeRunner {
	f.responses[key] = append(f.responses[key], outputs...)
	return f
}

func (f *fakeRunner) fail(key string) *fakeRunner {
	f.failures[key] = deploy.WrapError(deploy.ErrorKindProcess, &runner.ProcessError{
		Command:  key,
		ExitCode: 1,
		Stderr:   "Error: script failed: revert",
	})
	return f
}

func commandKey(args []string) string {
	switch args[0] {
	case "forge":
		key := args[2]
		for i, arg := range args {
			if arg == "--sig" {
				key += " " + strings.Join(args[i+1:], " ")
			}
		}
		return key
	case "cast":
		return "cast " + args[1]
	}
	return strings.Join(args, " ")
}

func (f *fakeRunner) Run(ctx context.Context, args ...string) (*runner.Result, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.calls = append(f.calls, args)
	key := commandKey(args)
	if err, ok := f.failures[key]; ok {
		return &runner.Result{Args: args, ExitCode: 1}, err
	}
	var out string
	if queue := f.responses[key]; len(queue) > 0 {
		out = queue[0]
		if len(queue) > 1 {
			f.responses[key] = queue[1:]
		}
	}
	return &runner.Result{Args: args, Stdout: out}, nil
}

func (f *fakeRunner) keys() []string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	keys := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		keys = append(keys, commandKey(call))
	}
	return keys
}

func (f *fakeRunner) callsFor(key string) [][]string {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	var calls [][]string
	for _, call := range f.calls {
		if commandKey(call) == key {
			calls = append(calls, call)
		}
	}
	return calls
}

// addr returns a distinct, valid address for n
func addr(n int) string {
	return fmt.Sprintf("0x%040x", n)
}

const zeroAddr = "0x0000000000000000000000000000000000000000"

func constantLine(typ, name, value string) string {
	return fmt.Sprintf("    %s internal constant %s = %s;\n", typ, name, value)
}

// writeContracts lays out the configuration files patched during a deployment
func writeContracts(t *testing.T, root string) {
	t.Helper()
	paths := DefaultPaths()

	var b strings.Builder
	b.WriteString("// SPDX-License-Identifier: MIT\npragma solidity ^0.8.21;\n\nabstract contract POLAddresses {\n")
	for _, name := range []string{AddrBGT, AddrBeraChef, AddrBlockRewardController, AddrDistributor, AddrRewardVaultFactory} {
		b.WriteString(constantLine("address", name, zeroAddr))
	}
	b.WriteString("}\n")
	writeFile(t, root, paths.AddressesFile, b.String())

	b.Reset()
	b.WriteString("contract DeployRewardVaultScript {\n")
	for _, name := range tokenConstants {
		b.WriteString(constantLine("address", name, zeroAddr))
	}
	b.WriteString("}\n")
	writeFile(t, root, paths.DeployVaultScript, b.String())

	b.Reset()
	b.WriteString("contract WhitelistRewardVaultScript {\n")
	for _, name := range vaultConstants {
		b.WriteString(constantLine("address", name, zeroAddr))
	}
	b.WriteString(constantLine("address", obsoleteVaultName, zeroAddr))
	b.WriteString("    address[] vaults = [\n")
	for _, name := range vaultConstants {
		b.WriteString("        " + name + ",\n")
	}
	b.WriteString("        " + obsoleteVaultName + "\n    ];\n}\n")
	writeFile(t, root, paths.WhitelistScript, b.String())

	b.Reset()
	b.WriteString("contract WhitelistIncentiveTokenScript {\n")
	for _, name := range vaultConstants {
		b.WriteString(constantLine("address", name, zeroAddr))
	}
	for _, name := range vaultConstants {
		b.WriteString(constantLine("uint96", name+"_WEIGHT", "1000"))
	}
	b.WriteString("}\n")
	writeFile(t, root, paths.AllocationScript, b.String())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	return string(data)
}

// snapshotTree returns every file under root keyed by relative path
func snapshotTree(t *testing.T, root string) map[string]string {
	t.Helper()
	files := map[string]string{}
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files[rel] = string(data)
		return nil
	})
	require.NoError(t, err)
	return files
}

// scriptedDeployment returns a runner that plays back a successful deployment
func scriptedDeployment() *fakeRunner {
	paths := DefaultPaths()
	f := newFakeRunner()
	f.respond(paths.PredictAddressesScript, fmt.Sprintf(
		"== Logs ==\n  BeraChef: %s\n  RewardVaultFactory: %s\n  BGT: %s\n  BlockRewardController: %s\n  Distributor: %s\n",
		addr(1), addr(2), addr(3), addr(4), addr(5)))
	f.respond(paths.DeployBGTScript, "== Logs ==\n  BGT deployed at: "+addr(3)+"\n")
	f.respond(paths.DeployPoLScript, fmt.Sprintf(
		"  BeraChef deployed at: %s\n  BlockRewardController deployed at: %s\n  Distributor deployed at: %s\n  RewardVaultFactory deployed at: %s\n",
		addr(1), addr(4), addr(5), addr(2)))
	for i := 1; i <= TokenCount; i++ {
		f.respond(fmt.Sprintf("%s %s %d", paths.DeployTokenScript, deployTokenSig, i),
			"  BST deployed at: "+addr(10+i)+"\n")
	}
	var vaults strings.Builder
	for i := 1; i <= TokenCount; i++ {
		fmt.Fprintf(&vaults, "  RewardVault deployed at %s for staking token %s\n", addr(20+i), addr(10+i))
	}
	f.respond(paths.DeployVaultScript, vaults.String())
	// One sample for validation, then three for verification.
	f.respond("cast balance", "50", "100", "120", "150")
	return f
}

func testConfig(root string) Config {
	cfg := DefaultConfig()
	cfg.WorkDir = root
	return cfg
}

func fixedNow() time.Time {
	return time.Date(2025, 7, 21, 12, 0, 0, 0, time.UTC)
}

func noSleep(ctx context.Context, d time.Duration) error {
	return nil
}

// stepContext builds the context a step sees when run by the engine
func stepContext(state *deploy.State, step string) deploy.Context {
	if state == nil {
		state = deploy.NewState()
	}
	return deploy.NewContext(context.Background(), deploy.ContextOptions{
		State:    state,
		StepName: step,
		RunID:    "run_test",
	})
}
