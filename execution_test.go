package deploy

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recorder builds activities that record their invocation order
type recorder struct {
	calls []string
}

func (r *recorder) activity(name string, fn ExecuteActivityFunc) Activity {
	return NewActivityFunction(name, func(ctx Context) (*StepResult, error) {
		r.calls = append(r.calls, name)
		if fn == nil {
			return &StepResult{Step: name}, nil
		}
		return fn(ctx)
	})
}

func newTestWorkflow(t *testing.T, names ...string) *Workflow {
	t.Helper()
	steps := make([]*Step, 0, len(names))
	for _, name := range names {
		steps = append(steps, &Step{Name: name})
	}
	wf, err := New(Options{Name: "test-deploy", Steps: steps})
	require.NoError(t, err)
	return wf
}

func fixedNow() time.Time {
	return time.Date(2025, 7, 21, 12, 0, 0, 0, time.UTC)
}

func TestNewExecutionValidation(t *testing.T) {
	wf := newTestWorkflow(t, "a")
	noop := NewActivityFunction("a", func(ctx Context) (*StepResult, error) { return nil, nil })

	t.Run("missing workflow returns error", func(t *testing.T) {
		_, err := NewExecution(ExecutionOptions{
			Activities: []Activity{noop},
			StateStore: NewMemoryStateStore(nil),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "workflow is required")
	})

	t.Run("empty activities slice returns error", func(t *testing.T) {
		_, err := NewExecution(ExecutionOptions{Workflow: wf, StateStore: NewMemoryStateStore(nil)})
		require.Error(t, err)
		require.Contains(t, err.Error(), "activities are required")
	})

	t.Run("missing state store returns error", func(t *testing.T) {
		_, err := NewExecution(ExecutionOptions{Workflow: wf, Activities: []Activity{noop}})
		require.Error(t, err)
		require.Contains(t, err.Error(), "state store is required")
	})

	t.Run("unbound step returns error", func(t *testing.T) {
		_, err := NewExecution(ExecutionOptions{
			Workflow:   newTestWorkflow(t, "a", "b"),
			Activities: []Activity{noop},
			StateStore: NewMemoryStateStore(nil),
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `activity "b" not found`)
	})

	t.Run("valid configuration creates execution", func(t *testing.T) {
		execution, err := NewExecution(ExecutionOptions{
			Workflow:   wf,
			Activities: []Activity{noop},
			StateStore: NewMemoryStateStore(nil),
		})
		require.NoError(t, err)
		require.NotEmpty(t, execution.ID())
		require.Equal(t, ExecutionStatusPending, execution.Status())
	})
}

func TestExecutionRunsStepsInOrder(t *testing.T) {
	rec := &recorder{}
	store := NewMemoryStateStore(nil)

	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "a", "b", "c"),
		Activities: []Activity{
			rec.activity("a", nil),
			rec.activity("b", nil),
			rec.activity("c", nil),
		},
		StateStore: store,
		Now:        fixedNow,
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))

	require.Equal(t, []string{"a", "b", "c"}, rec.calls)
	require.Equal(t, ExecutionStatusCompleted, execution.Status())

	state := execution.State()
	require.Equal(t, []string{"a", "b", "c"}, state.CompletedSteps)
	require.Equal(t, "c", state.Step)
	require.Equal(t, fixedNow().Format(time.RFC3339Nano), state.Timestamp)

	// One save before and one after each step.
	require.Equal(t, 6, store.Saves())

	require.Error(t, execution.Run(context.Background()), "an execution runs once")
}

func TestExecutionSkipsAllCompletedSteps(t *testing.T) {
	rec := &recorder{}
	prior := NewState()
	prior.CompletedSteps = []string{"a", "b", "c"}
	prior.Step = "c"
	store := NewMemoryStateStore(prior)

	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "a", "b", "c"),
		Activities: []Activity{
			rec.activity("a", nil),
			rec.activity("b", nil),
			rec.activity("c", nil),
		},
		StateStore: store,
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))

	require.Empty(t, rec.calls)
	require.Equal(t, 0, store.Saves())
	require.Equal(t, []string{"a", "b", "c"}, execution.State().CompletedSteps)
}

func TestExecutionSkipDecisionMatchesCompletedSteps(t *testing.T) {
	names := []string{"a", "b", "c", "d"}
	cases := []struct {
		completed []string
		expected  []string
	}{
		{completed: nil, expected: []string{"a", "b", "c", "d"}},
		{completed: []string{"a"}, expected: []string{"b", "c", "d"}},
		{completed: []string{"a", "b", "c"}, expected: []string{"d"}},
		{completed: []string{"b", "d"}, expected: []string{"a", "c"}},
	}
	for _, tc := range cases {
		rec := &recorder{}
		prior := NewState()
		prior.CompletedSteps = tc.completed
		activities := make([]Activity, 0, len(names))
		for _, name := range names {
			activities = append(activities, rec.activity(name, nil))
		}
		execution, err := NewExecution(ExecutionOptions{
			Workflow:   newTestWorkflow(t, names...),
			Activities: activities,
			StateStore: NewMemoryStateStore(prior),
		})
		require.NoError(t, err)
		require.NoError(t, execution.Run(context.Background()))
		require.Equal(t, tc.expected, rec.calls, "completed=%v", tc.completed)
	}
}

func TestExecutionRecordsStepBeforeRunning(t *testing.T) {
	store := NewMemoryStateStore(nil)
	var seen *State

	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "a"),
		Activities: []Activity{
			NewActivityFunction("a", func(ctx Context) (*StepResult, error) {
				state, err := store.Load(ctx)
				seen = state
				return nil, err
			}),
		},
		StateStore: store,
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))

	require.NotNil(t, seen)
	require.Equal(t, "a", seen.Step)
	require.Empty(t, seen.CompletedSteps)
}

func TestExecutionAppliesStepResults(t *testing.T) {
	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "predict", "tokens", "read"),
		Activities: []Activity{
			NewActivityFunction("predict", func(ctx Context) (*StepResult, error) {
				return &StepResult{Addresses: map[string]string{"BGT_ADDRESS": "0x01"}}, nil
			}),
			NewActivityFunction("tokens", func(ctx Context) (*StepResult, error) {
				return &StepResult{TokenAddresses: []string{"0x02", "0x03"}}, nil
			}),
			NewActivityFunction("read", func(ctx Context) (*StepResult, error) {
				addr, ok := ctx.State().Address("BGT_ADDRESS")
				require.True(t, ok)
				require.Equal(t, "0x01", addr)
				require.Equal(t, "read", ctx.StepName())
				return &StepResult{VaultAddresses: []string{"0x04"}}, nil
			}),
		},
		StateStore: NewMemoryStateStore(nil),
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))

	state := execution.State()
	require.Equal(t, map[string]string{"BGT_ADDRESS": "0x01"}, state.Addresses)
	require.Equal(t, []string{"0x02", "0x03"}, state.TokenAddresses)
	require.Equal(t, []string{"0x04"}, state.VaultAddresses)
}

func TestExecutionFailureAndResume(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "deployment_state.json")
	store, err := NewFileStateStore(statePath)
	require.NoError(t, err)

	boom := NewError(ErrorKindProcess, "exit status 1")
	rec := &recorder{}
	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "A", "B", "C"),
		Activities: []Activity{
			rec.activity("A", func(ctx Context) (*StepResult, error) {
				return &StepResult{Addresses: map[string]string{"A": "0xa"}}, nil
			}),
			rec.activity("B", func(ctx Context) (*StepResult, error) {
				return &StepResult{Addresses: map[string]string{"B": "0xb"}}, boom
			}),
			rec.activity("C", nil),
		},
		StateStore: store,
	})
	require.NoError(t, err)

	err = execution.Run(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, boom)
	require.True(t, IsKind(err, ErrorKindProcess))
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	require.Equal(t, "B", stepErr.Step)
	require.Equal(t, ExecutionStatusFailed, execution.Status())
	require.Equal(t, []string{"A", "B"}, rec.calls)

	persisted, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A"}, persisted.CompletedSteps)
	require.Equal(t, "B", persisted.Step)
	require.Equal(t, map[string]string{"A": "0xa"}, persisted.Addresses, "failed step results are discarded")

	// Resume with a fixed B.
	rec = &recorder{}
	execution, err = NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "A", "B", "C"),
		Activities: []Activity{
			rec.activity("A", nil),
			rec.activity("B", nil),
			rec.activity("C", nil),
		},
		StateStore: store,
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))
	require.Equal(t, []string{"B", "C"}, rec.calls)

	persisted, err = store.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C"}, persisted.CompletedSteps)
	require.Equal(t, map[string]string{"A": "0xa"}, persisted.Addresses)

	// Disk and memory agree byte for byte.
	expected, err := json.MarshalIndent(execution.State(), "", "  ")
	require.NoError(t, err)
	actual, err := os.ReadFile(statePath)
	require.NoError(t, err)
	require.Equal(t, string(expected), string(actual))
}

func TestExecutionAfterReset(t *testing.T) {
	store, err := NewFileStateStore(filepath.Join(t.TempDir(), "state.json"))
	require.NoError(t, err)

	prior := NewState()
	prior.CompletedSteps = []string{"a", "b"}
	require.NoError(t, store.Save(context.Background(), prior))
	require.NoError(t, store.Delete(context.Background()))

	rec := &recorder{}
	execution, err := NewExecution(ExecutionOptions{
		Workflow:   newTestWorkflow(t, "a", "b"),
		Activities: []Activity{rec.activity("a", nil), rec.activity("b", nil)},
		StateStore: store,
	})
	require.NoError(t, err)
	require.NoError(t, execution.Run(context.Background()))
	require.Equal(t, []string{"a", "b"}, rec.calls)
}

func TestExecutionMalformedState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	store, err := NewFileStateStore(path)
	require.NoError(t, err)

	rec := &recorder{}
	execution, err := NewExecution(ExecutionOptions{
		Workflow:   newTestWorkflow(t, "a"),
		Activities: []Activity{rec.activity("a", nil)},
		StateStore: store,
	})
	require.NoError(t, err)

	err = execution.Run(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindStateLoad))
	require.Empty(t, rec.calls)
	require.Equal(t, ExecutionStatusFailed, execution.Status())
}

func TestExecutionCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{}
	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "a", "b"),
		Activities: []Activity{
			rec.activity("a", func(ctx Context) (*StepResult, error) {
				cancel()
				return nil, nil
			}),
			rec.activity("b", nil),
		},
		StateStore: NewMemoryStateStore(nil),
	})
	require.NoError(t, err)

	err = execution.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, []string{"a"}, rec.calls)
	require.Equal(t, []string{"a"}, execution.State().CompletedSteps)
}

func TestExecutionActivityLog(t *testing.T) {
	logDir := t.TempDir()
	activityLogger := NewFileActivityLogger(logDir)

	prior := NewState()
	prior.CompletedSteps = []string{"a"}

	execution, err := NewExecution(ExecutionOptions{
		Workflow: newTestWorkflow(t, "a", "b", "c"),
		Activities: []Activity{
			NewActivityFunction("a", func(ctx Context) (*StepResult, error) { return nil, nil }),
			NewActivityFunction("b", func(ctx Context) (*StepResult, error) {
				return &StepResult{Addresses: map[string]string{"X": "0x1"}}, nil
			}),
			NewActivityFunction("c", func(ctx Context) (*StepResult, error) {
				return nil, errors.New("boom")
			}),
		},
		StateStore:     NewMemoryStateStore(prior),
		ActivityLogger: activityLogger,
		RunID:          "run_test",
	})
	require.NoError(t, err)
	require.Error(t, execution.Run(context.Background()))

	entries, err := activityLogger.GetActivityHistory(context.Background(), "run_test")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, "a", entries[0].StepName)
	require.Equal(t, StepStatusSkipped, entries[0].Status)

	require.Equal(t, "b", entries[1].StepName)
	require.Equal(t, StepStatusCompleted, entries[1].Status)
	require.Equal(t, map[string]string{"X": "0x1"}, entries[1].Addresses)

	require.Equal(t, "c", entries[2].StepName)
	require.Equal(t, StepStatusFailed, entries[2].Status)
	require.Equal(t, "boom", entries[2].Error)
	for _, entry := range entries {
		require.Equal(t, "run_test", entry.RunID)
		require.NotEmpty(t, entry.ID)
	}
}
