// Package foundry invokes the forge and cast command line tools.
package foundry

import (
	"context"
	"strings"

	"github.com/deepnoodle-ai/deploy/runner"
)

const (
	forgeBinary = "forge"
	castBinary  = "cast"
)

// Signer identifies the account that signs and broadcasts transactions
type Signer struct {
	Address    string
	PrivateKey string
}

// Forge runs forge scripts against a node
type Forge struct {
	runner runner.Runner
	signer Signer
	rpcURL string
}

// NewForge returns a Forge that runs commands with r
func NewForge(r runner.Runner, signer Signer, rpcURL string) *Forge {
	return &Forge{runner: r, signer: signer, rpcURL: rpcURL}
}

// ScriptOption customizes a forge script invocation
type ScriptOption func(*scriptOptions)

type scriptOptions struct {
	sig  string
	args []string
}

// WithSig calls the given function signature with positional arguments
// instead of the script's run() entry point.
func WithSig(sig string, args ...string) ScriptOption {
	return func(o *scriptOptions) {
		o.sig = sig
		o.args = args
	}
}

// ScriptArgs returns the command line for a script invocation
func (f *Forge) ScriptArgs(path string, opts ...ScriptOption) []string {
	var o scriptOptions
	for _, opt := range opts {
		opt(&o)
	}
	args := []string{
		forgeBinary, "script", path,
		"--private-key", f.signer.PrivateKey,
		"--sender", f.signer.Address,
		"--rpc-url", f.rpcURL,
		"--broadcast", "-vv",
	}
	if o.sig != "" {
		args = append(args, "--sig", o.sig)
		args = append(args, o.args...)
	}
	return args
}

// Script broadcasts a forge script and returns its stdout
func (f *Forge) Script(ctx context.Context, path string, opts ...ScriptOption) (string, error) {
	result, err := f.runner.Run(ctx, f.ScriptArgs(path, opts...)...)
	if err != nil {
		return "", err
	}
	return result.Stdout, nil
}

// Cast queries and sends transactions with cast
type Cast struct {
	runner runner.Runner
	signer Signer
	rpcURL string
}

// NewCast returns a Cast that runs commands with r
func NewCast(r runner.Runner, signer Signer, rpcURL string) *Cast {
	return &Cast{runner: r, signer: signer, rpcURL: rpcURL}
}

// Balance returns the wei balance of address as printed by cast
func (c *Cast) Balance(ctx context.Context, address string) (string, error) {
	return c.run(ctx, "balance", address, "--rpc-url", c.rpcURL)
}

// Send signs and sends a transaction calling sig on the contract at to
func (c *Cast) Send(ctx context.Context, to, sig string, args ...string) (string, error) {
	cmd := []string{"send", to, sig}
	cmd = append(cmd, args...)
	cmd = append(cmd, "--private-key", c.signer.PrivateKey, "--rpc-url", c.rpcURL, "-vv")
	return c.run(ctx, cmd...)
}

// CallCommand renders a read-only cast call for an operator to run by hand
func (c *Cast) CallCommand(to, sig string, args ...string) string {
	parts := []string{castBinary, "call", to, `"` + sig + `"`}
	parts = append(parts, args...)
	parts = append(parts, "--rpc-url", c.rpcURL)
	return strings.Join(parts, " ")
}

func (c *Cast) run(ctx context.Context, args ...string) (string, error) {
	result, err := c.runner.Run(ctx, append([]string{castBinary}, args...)...)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Stdout), nil
}
