package deploy

import (
	"context"
	"time"
)

// ExecutionCallbacks defines the callback interface for workflow execution events
type ExecutionCallbacks interface {
	// Workflow-level callbacks
	BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent)
	AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent)

	// Step-level callbacks
	OnStepSkipped(ctx context.Context, event *StepExecutionEvent)
	BeforeStepExecution(ctx context.Context, event *StepExecutionEvent)
	AfterStepExecution(ctx context.Context, event *StepExecutionEvent)
}

// WorkflowExecutionEvent provides context for workflow-level execution events
type WorkflowExecutionEvent struct {
	RunID          string
	WorkflowName   string
	Status         ExecutionStatus
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
	CompletedSteps []string
	CurrentStep    string
	State          *State
	Error          error
}

// StepExecutionEvent provides context for step-level execution events
type StepExecutionEvent struct {
	RunID        string
	WorkflowName string
	StepName     string
	Index        int
	Total        int
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	Result       *StepResult
	Error        error
}

// BaseExecutionCallbacks provides a default implementation that does nothing
type BaseExecutionCallbacks struct{}

func (n *BaseExecutionCallbacks) BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) OnStepSkipped(ctx context.Context, event *StepExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) BeforeStepExecution(ctx context.Context, event *StepExecutionEvent) {
	// noop
}

func (n *BaseExecutionCallbacks) AfterStepExecution(ctx context.Context, event *StepExecutionEvent) {
	// noop
}

// NewBaseExecutionCallbacks creates a new no-op callbacks implementation.
// Embed this in your own callbacks to get a default implementation that does nothing.
func NewBaseExecutionCallbacks() ExecutionCallbacks {
	return &BaseExecutionCallbacks{}
}

// CallbackChain allows chaining multiple callback implementations
type CallbackChain struct {
	callbacks []ExecutionCallbacks
}

// NewCallbackChain creates a new callback chain
func NewCallbackChain(callbacks ...ExecutionCallbacks) *CallbackChain {
	return &CallbackChain{callbacks: callbacks}
}

// Add adds a callback to the chain
func (c *CallbackChain) Add(callback ExecutionCallbacks) {
	c.callbacks = append(c.callbacks, callback)
}

func (c *CallbackChain) BeforeWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeWorkflowExecution(ctx, event)
	}
}

func (c *CallbackChain) AfterWorkflowExecution(ctx context.Context, event *WorkflowExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.AfterWorkflowExecution(ctx, event)
	}
}

func (c *CallbackChain) OnStepSkipped(ctx context.Context, event *StepExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.OnStepSkipped(ctx, event)
	}
}

func (c *CallbackChain) BeforeStepExecution(ctx context.Context, event *StepExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.BeforeStepExecution(ctx, event)
	}
}

func (c *CallbackChain) AfterStepExecution(ctx context.Context, event *StepExecutionEvent) {
	for _, callback := range c.callbacks {
		callback.AfterStepExecution(ctx, event)
	}
}
