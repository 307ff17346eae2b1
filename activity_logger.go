package deploy

import (
	"context"
	"time"
)

// Step statuses recorded in the activity log
const (
	StepStatusSkipped   = "skipped"
	StepStatusCompleted = "completed"
	StepStatusFailed    = "failed"
)

// ActivityLogEntry records one step decision made during a run
type ActivityLogEntry struct {
	ID        string            `json:"id"`
	RunID     string            `json:"run_id"`
	StepName  string            `json:"step_name"`
	Activity  string            `json:"activity"`
	Status    string            `json:"status"`
	Addresses map[string]string `json:"addresses,omitempty"`
	Tokens    []string          `json:"tokens,omitempty"`
	Vaults    []string          `json:"vaults,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind ErrorKind         `json:"error_kind,omitempty"`
	StartTime time.Time         `json:"start_time"`
	Duration  float64           `json:"duration"`
}

// ActivityLogger defines simple step logging interface
type ActivityLogger interface {
	// LogActivity logs a step decision
	LogActivity(ctx context.Context, entry *ActivityLogEntry) error

	// GetActivityHistory retrieves the activity log for a run
	GetActivityHistory(ctx context.Context, runID string) ([]*ActivityLogEntry, error)
}
