package deploy

import (
	"context"
	"log/slog"
)

// Context is passed to activities. It carries the step's logger and a
// read-only view of the deployment state.
type Context interface {
	context.Context

	// Logger returns a logger annotated with the run ID and step name
	Logger() *slog.Logger

	// State returns read-only access to the state as of the step's start
	State() StateReader

	// StepName returns the name of the step being executed
	StepName() string

	// RunID returns the ID of the current run
	RunID() string
}

// ContextOptions configures a new Context
type ContextOptions struct {
	Logger   *slog.Logger
	State    StateReader
	StepName string
	RunID    string
}

type executionContext struct {
	context.Context
	logger   *slog.Logger
	state    StateReader
	stepName string
	runID    string
}

// NewContext returns a Context wrapping ctx.
func NewContext(ctx context.Context, opts ContextOptions) Context {
	if opts.Logger == nil {
		opts.Logger = NewDiscardLogger()
	}
	if opts.State == nil {
		opts.State = NewState()
	}
	return &executionContext{
		Context:  ctx,
		logger:   opts.Logger,
		state:    opts.State,
		stepName: opts.StepName,
		runID:    opts.RunID,
	}
}

func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

func (c *executionContext) State() StateReader {
	return c.state
}

func (c *executionContext) StepName() string {
	return c.stepName
}

func (c *executionContext) RunID() string {
	return c.runID
}
