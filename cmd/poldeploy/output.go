package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/deepnoodle-ai/deploy"
	"github.com/deepnoodle-ai/deploy/pol"
	"github.com/fatih/color"
)

// printer writes operator-facing output
type printer struct {
	w io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) line(attr color.Attribute, format string, args ...any) {
	color.New(attr).Fprintf(p.w, format+"\n", args...)
}

func (p *printer) plain(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) entries(title string, entries []pol.SummaryEntry) {
	if len(entries) == 0 {
		return
	}
	p.plain("")
	p.line(color.FgMagenta, "%s:", title)
	for _, e := range entries {
		p.plain("  %s: %s", e.Label, e.Address)
	}
}

func (p *printer) header(cfg pol.Config) {
	p.line(color.FgBlue, "PoL deployment")
	p.plain("  RPC URL:    %s", cfg.RPCURL)
	p.plain("  Deployer:   %s", cfg.EthFrom)
	p.plain("  Work dir:   %s", cfg.WorkDir)
	p.plain("  State file: %s", cfg.StatePath())
	if cfg.DryRun {
		p.line(color.FgYellow, "DRY RUN: commands are logged, not executed, and no files are modified")
	}
	if !cfg.BackupFiles {
		p.line(color.FgYellow, "File backups disabled")
	}
	p.plain("")
}

func (p *printer) summary(d *pol.Deployment, summary *pol.Summary, duration time.Duration) {
	p.plain("")
	p.line(color.FgGreen, "Deployment completed in %v", duration.Round(time.Millisecond))

	p.entries("Contracts", summary.ContractEntries())
	p.entries("Staking tokens", summary.TokenEntries())
	p.entries("Reward vaults", summary.VaultEntries())

	if v := summary.Verification; v != nil {
		p.plain("")
		switch v.Outcome {
		case pol.VerificationIncreasing:
			p.line(color.FgGreen, "BGT distribution verified: contract balance is increasing")
		case pol.VerificationNotIncreasing:
			p.line(color.FgYellow, "BGT contract balance is not increasing, distribution may not be working")
		case pol.VerificationInconclusive:
			p.line(color.FgYellow, "BGT verification inconclusive: %v", v.Samples)
		case pol.VerificationSkipped:
			p.line(color.FgYellow, "BGT verification skipped: no BGT address recorded")
		}
		if v.Address != "" {
			p.plain("")
			for _, line := range d.Deployer.FollowUpInstructions(v.Address) {
				p.plain("%s", line)
			}
		}
	}

	p.plain("")
	if d.SummaryPath != "" {
		p.line(color.FgBlue, "Summary saved to %s", d.SummaryPath)
	}
	if len(d.Patcher.Backups()) > 0 {
		p.line(color.FgBlue, "Original files backed up to %s", d.BackupDir)
	}
}

func (p *printer) failure(d *pol.Deployment, err error, duration time.Duration) {
	p.plain("")
	p.line(color.FgRed, "Deployment failed after %v", duration.Round(time.Millisecond))
	var stepErr *deploy.StepError
	if errors.As(err, &stepErr) {
		p.line(color.FgRed, "Failed step: %s", stepErr.Step)
	}
	if kind := deploy.KindOf(err); kind != "" {
		p.line(color.FgRed, "Error kind: %s", kind)
	}
	if !d.Config.DryRun {
		p.line(color.FgYellow, "Progress saved to %s. Run again to resume.", d.Config.StatePath())
	}
}

func (p *printer) status(path string, state *deploy.State) {
	p.line(color.FgBlue, "Deployment state: %s", path)
	if state.Timestamp == "" && len(state.CompletedSteps) == 0 {
		p.plain("No deployment progress recorded")
		return
	}
	p.plain("Last updated: %s", state.Timestamp)
	p.plain("")
	p.line(color.FgMagenta, "Steps:")
	for i, name := range pol.StepNames() {
		switch {
		case state.IsCompleted(name):
			p.line(color.FgGreen, "  %2d. [done]    %s", i+1, name)
		case name == state.Step:
			p.line(color.FgRed, "  %2d. [stopped] %s", i+1, name)
		default:
			p.plain("  %2d. [pending] %s", i+1, name)
		}
	}

	summary := pol.NewSummary(pol.Config{}, state, nil, time.Time{})
	p.entries("Addresses", summary.ContractEntries())
	p.entries("Staking tokens", summary.TokenEntries())
	p.entries("Reward vaults", summary.VaultEntries())
}

// consoleCallbacks prints a banner per step
type consoleCallbacks struct {
	deploy.BaseExecutionCallbacks
	p *printer
}

func newConsoleCallbacks(p *printer) *consoleCallbacks {
	return &consoleCallbacks{p: p}
}

func (c *consoleCallbacks) OnStepSkipped(ctx context.Context, event *deploy.StepExecutionEvent) {
	c.p.line(color.FgYellow, "[%d/%d] %s already completed, skipping", event.Index+1, event.Total, event.StepName)
}

func (c *consoleCallbacks) BeforeStepExecution(ctx context.Context, event *deploy.StepExecutionEvent) {
	c.p.line(color.FgCyan, "[%d/%d] %s", event.Index+1, event.Total, event.StepName)
}

func (c *consoleCallbacks) AfterStepExecution(ctx context.Context, event *deploy.StepExecutionEvent) {
	if event.Error != nil {
		c.p.line(color.FgRed, "[%d/%d] %s failed: %v", event.Index+1, event.Total, event.StepName, event.Error)
		return
	}
	c.p.line(color.FgGreen, "[%d/%d] %s done (%v)", event.Index+1, event.Total, event.StepName, event.Duration.Round(time.Millisecond))
}
