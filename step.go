package deploy

// Step represents a single named step in a workflow.
type Step struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Activity    string `json:"activity,omitempty" yaml:"activity,omitempty"`
}

// ActivityName returns the activity bound to the step. It defaults to the
// step name.
func (s *Step) ActivityName() string {
	if s.Activity != "" {
		return s.Activity
	}
	return s.Name
}
