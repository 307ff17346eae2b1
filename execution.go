package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.jetify.com/typeid"
)

// NewRunID returns a new ID identifying one invocation of the deployer
func NewRunID() string {
	id, err := typeid.WithPrefix("run")
	if err != nil {
		panic(err)
	}
	return id.String()
}

func newEntryID() string {
	id, err := typeid.WithPrefix("act")
	if err != nil {
		panic(err)
	}
	return id.String()
}

// ExecutionStatus represents the execution status
type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

// ExecutionOptions configures a new execution
type ExecutionOptions struct {
	Workflow           *Workflow
	Activities         []Activity
	StateStore         StateStore
	ActivityLogger     ActivityLogger
	Logger             *slog.Logger
	RunID              string
	ExecutionCallbacks ExecutionCallbacks

	// Now overrides the clock used for state timestamps
	Now func() time.Time
}

// Execution runs a workflow's steps in order, skipping steps the persisted
// state already records as completed.
type Execution struct {
	workflow           *Workflow
	activities         map[string]Activity
	store              StateStore
	activityLogger     ActivityLogger
	executionCallbacks ExecutionCallbacks
	logger             *slog.Logger
	runID              string
	now                func() time.Time

	mutex   sync.RWMutex
	state   *State
	status  ExecutionStatus
	started bool
}

// NewExecution creates a new execution
func NewExecution(opts ExecutionOptions) (*Execution, error) {
	if opts.Workflow == nil {
		return nil, fmt.Errorf("workflow is required")
	}
	if len(opts.Activities) == 0 {
		return nil, fmt.Errorf("activities are required")
	}
	if opts.StateStore == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if opts.Logger == nil {
		opts.Logger = NewDiscardLogger()
	}
	if opts.ActivityLogger == nil {
		opts.ActivityLogger = NewNullActivityLogger()
	}
	if opts.RunID == "" {
		opts.RunID = NewRunID()
	}
	if opts.ExecutionCallbacks == nil {
		opts.ExecutionCallbacks = &BaseExecutionCallbacks{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	activities := make(map[string]Activity, len(opts.Activities))
	for _, activity := range opts.Activities {
		if activity == nil {
			return nil, fmt.Errorf("nil activity")
		}
		activities[activity.Name()] = activity
	}
	for _, step := range opts.Workflow.Steps() {
		if _, ok := activities[step.ActivityName()]; !ok {
			return nil, fmt.Errorf("activity %q not found for step %q", step.ActivityName(), step.Name)
		}
	}

	return &Execution{
		workflow:           opts.Workflow,
		activities:         activities,
		store:              opts.StateStore,
		activityLogger:     opts.ActivityLogger,
		executionCallbacks: opts.ExecutionCallbacks,
		logger:             opts.Logger.With("run_id", opts.RunID),
		runID:              opts.RunID,
		now:                opts.Now,
		state:              NewState(),
		status:             ExecutionStatusPending,
	}, nil
}

// ID returns the run ID
func (e *Execution) ID() string {
	return e.runID
}

// Status returns the current execution status
func (e *Execution) Status() ExecutionStatus {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.status
}

// State returns a copy of the current deployment state
func (e *Execution) State() *State {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.state.Copy()
}

func (e *Execution) start() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.started {
		return fmt.Errorf("execution already started")
	}
	e.started = true
	e.status = ExecutionStatusRunning
	return nil
}

func (e *Execution) setStatus(status ExecutionStatus) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.status = status
}

// Run loads prior state and executes every step not yet completed, in order.
// It stops at the first failing step, leaving the persisted state pointing at
// that step so the next run resumes there.
func (e *Execution) Run(ctx context.Context) error {
	if err := e.start(); err != nil {
		return err
	}

	startTime := time.Now()
	if err := e.loadState(ctx); err != nil {
		e.setStatus(ExecutionStatusFailed)
		return err
	}

	e.executionCallbacks.BeforeWorkflowExecution(ctx, e.workflowEvent(startTime, nil))

	err := e.runSteps(ctx)
	if err != nil {
		e.setStatus(ExecutionStatusFailed)
		e.logger.Error("deployment failed",
			"current_step", e.State().Step,
			"error", err)
		e.logger.Error("run again to resume from the last successful step")
	} else {
		e.setStatus(ExecutionStatusCompleted)
		e.logger.Info("deployment completed")
	}

	e.executionCallbacks.AfterWorkflowExecution(ctx, e.workflowEvent(startTime, err))
	return err
}

// loadState replaces the in-memory state with the persisted one, if any.
func (e *Execution) loadState(ctx context.Context) error {
	loaded, err := e.store.Load(ctx)
	if err != nil {
		return err
	}
	if loaded == nil {
		e.logger.Info("no previous state found, starting fresh")
		return nil
	}

	e.mutex.Lock()
	e.state = loaded
	e.mutex.Unlock()

	e.logger.Info("loaded previous state", "completed_steps", loaded.CompletedSteps)
	if loaded.Step != "" && !loaded.IsCompleted(loaded.Step) {
		e.logger.Warn("previous run stopped during a step, it will be retried", "step", loaded.Step)
	}
	return nil
}

func (e *Execution) runSteps(ctx context.Context) error {
	steps := e.workflow.Steps()
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}

		event := &StepExecutionEvent{
			RunID:        e.runID,
			WorkflowName: e.workflow.Name(),
			StepName:     step.Name,
			Index:        i,
			Total:        len(steps),
		}

		// The skip check must precede any side effect of the step.
		if e.State().IsCompleted(step.Name) {
			e.logger.Info("skipping completed step", "step", step.Name)
			e.logActivity(ctx, &ActivityLogEntry{
				StepName:  step.Name,
				Activity:  step.ActivityName(),
				Status:    StepStatusSkipped,
				StartTime: time.Now(),
			})
			e.executionCallbacks.OnStepSkipped(ctx, event)
			continue
		}

		if err := e.executeStep(ctx, step, event); err != nil {
			return &StepError{Step: step.Name, Err: err}
		}
	}
	return nil
}

func (e *Execution) executeStep(ctx context.Context, step *Step, event *StepExecutionEvent) error {
	logger := e.logger.With("step", step.Name)
	logger.Info("executing step")

	// Record the attempt before running so a crash mid-step is diagnosable.
	e.mutex.Lock()
	e.state.Step = step.Name
	e.mutex.Unlock()
	if err := e.saveState(ctx); err != nil {
		return err
	}

	activity := e.activities[step.ActivityName()]
	stepCtx := NewContext(ctx, ContextOptions{
		Logger:   logger,
		State:    e.State(),
		StepName: step.Name,
		RunID:    e.runID,
	})

	event.StartTime = time.Now()
	e.executionCallbacks.BeforeStepExecution(ctx, event)

	result, err := activity.Execute(stepCtx)

	event.EndTime = time.Now()
	event.Duration = event.EndTime.Sub(event.StartTime)
	event.Result = result
	event.Error = err

	entry := &ActivityLogEntry{
		StepName:  step.Name,
		Activity:  activity.Name(),
		StartTime: event.StartTime,
		Duration:  event.Duration.Seconds(),
	}

	if err != nil {
		logger.Error("step failed", "error", err)
		entry.Status = StepStatusFailed
		entry.Error = err.Error()
		entry.ErrorKind = KindOf(err)
		e.logActivity(ctx, entry)
		e.executionCallbacks.AfterStepExecution(ctx, event)
		return err
	}

	e.mutex.Lock()
	e.state.Apply(result)
	e.state.MarkCompleted(step.Name)
	e.mutex.Unlock()
	if err := e.saveState(ctx); err != nil {
		return err
	}

	entry.Status = StepStatusCompleted
	if result != nil {
		entry.Addresses = result.Addresses
		entry.Tokens = result.TokenAddresses
		entry.Vaults = result.VaultAddresses
	}
	e.logActivity(ctx, entry)
	e.executionCallbacks.AfterStepExecution(ctx, event)
	logger.Info("step completed", "duration", event.Duration)
	return nil
}

// saveState stamps and persists the current state
func (e *Execution) saveState(ctx context.Context) error {
	e.mutex.Lock()
	e.state.Timestamp = e.now().Format(time.RFC3339Nano)
	snapshot := e.state.Copy()
	e.mutex.Unlock()

	if err := e.store.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	e.logger.Debug("state saved", "step", snapshot.Step, "completed_steps", len(snapshot.CompletedSteps))
	return nil
}

func (e *Execution) logActivity(ctx context.Context, entry *ActivityLogEntry) {
	entry.ID = newEntryID()
	entry.RunID = e.runID
	if err := e.activityLogger.LogActivity(ctx, entry); err != nil {
		e.logger.Warn("failed to write activity log", "step", entry.StepName, "error", err)
	}
}

func (e *Execution) workflowEvent(startTime time.Time, err error) *WorkflowExecutionEvent {
	state := e.State()
	endTime := time.Now()
	return &WorkflowExecutionEvent{
		RunID:          e.runID,
		WorkflowName:   e.workflow.Name(),
		Status:         e.Status(),
		StartTime:      startTime,
		EndTime:        endTime,
		Duration:       endTime.Sub(startTime),
		CompletedSteps: state.CompletedSteps,
		CurrentStep:    state.Step,
		State:          state,
		Error:          err,
	}
}
