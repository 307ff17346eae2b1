package deploy

// Activity represents the action behind a workflow step.
type Activity interface {

	// Name returns the name of the Activity
	Name() string

	// Execute the Activity. The returned result is applied to the deployment
	// state by the execution only if err is nil.
	Execute(ctx Context) (*StepResult, error)
}

// StepResult carries the values a step produced. It is transient: the
// execution applies it to the state and discards it.
type StepResult struct {
	Step           string            `json:"step"`
	Addresses      map[string]string `json:"addresses,omitempty"`
	TokenAddresses []string          `json:"token_addresses,omitempty"`
	VaultAddresses []string          `json:"vault_addresses,omitempty"`
	Output         string            `json:"-"`
}

// ExecuteActivityFunc is the signature of a function usable as an Activity.
type ExecuteActivityFunc func(ctx Context) (*StepResult, error)

// Confirm the interface is implemented correctly.
var _ Activity = (*ActivityFunction)(nil)

// ActivityFunction wraps a function for use as an Activity.
type ActivityFunction struct {
	name string
	fn   ExecuteActivityFunc
}

// NewActivityFunction returns an Activity for the given function.
func NewActivityFunction(name string, fn ExecuteActivityFunc) Activity {
	return &ActivityFunction{name: name, fn: fn}
}

// Name of the Activity.
func (a *ActivityFunction) Name() string {
	return a.name
}

// Execute the Activity.
func (a *ActivityFunction) Execute(ctx Context) (*StepResult, error) {
	return a.fn(ctx)
}
