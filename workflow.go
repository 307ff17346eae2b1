package deploy

import (
	"fmt"
)

// Options are used to configure a workflow.
type Options struct {
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []*Step `json:"steps" yaml:"steps"`
}

// Workflow is a fixed, ordered list of named steps.
type Workflow struct {
	name        string
	description string
	steps       []*Step
	stepsByName map[string]*Step
}

// New returns a new Workflow configured with the given options.
func New(opts Options) (*Workflow, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("workflow name required")
	}
	if len(opts.Steps) == 0 {
		return nil, fmt.Errorf("steps required")
	}

	stepsByName := make(map[string]*Step, len(opts.Steps))
	for _, step := range opts.Steps {
		if step == nil || step.Name == "" {
			return nil, fmt.Errorf("step name required")
		}
		if _, exists := stepsByName[step.Name]; exists {
			return nil, fmt.Errorf("duplicate step name %q", step.Name)
		}
		stepsByName[step.Name] = step
	}

	return &Workflow{
		name:        opts.Name,
		description: opts.Description,
		steps:       opts.Steps,
		stepsByName: stepsByName,
	}, nil
}

// Name returns the workflow name
func (w *Workflow) Name() string {
	return w.name
}

// Description returns the workflow description
func (w *Workflow) Description() string {
	return w.description
}

// Steps returns the workflow steps in execution order
func (w *Workflow) Steps() []*Step {
	return w.steps
}

// GetStep returns a step by name
func (w *Workflow) GetStep(name string) (*Step, bool) {
	step, ok := w.stepsByName[name]
	return step, ok
}

// StepNames returns the names of all steps in execution order
func (w *Workflow) StepNames() []string {
	names := make([]string, 0, len(w.steps))
	for _, step := range w.steps {
		names = append(names, step.Name)
	}
	return names
}
