package deploy

import (
	"maps"
	"slices"
)

// State is the durable record of deployment progress. This struct is designed
// to be fully JSON serializable and its field names match the on-disk format.
type State struct {
	Step           string            `json:"step"`
	CompletedSteps []string          `json:"completed_steps"`
	Addresses      map[string]string `json:"addresses"`
	TokenAddresses []string          `json:"token_addresses"`
	VaultAddresses []string          `json:"vault_addresses"`
	Timestamp      string            `json:"timestamp"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		CompletedSteps: []string{},
		Addresses:      map[string]string{},
		TokenAddresses: []string{},
		VaultAddresses: []string{},
	}
}

// normalize replaces nil collections left by decoding with empty ones.
func (s *State) normalize() {
	if s.CompletedSteps == nil {
		s.CompletedSteps = []string{}
	}
	if s.Addresses == nil {
		s.Addresses = map[string]string{}
	}
	if s.TokenAddresses == nil {
		s.TokenAddresses = []string{}
	}
	if s.VaultAddresses == nil {
		s.VaultAddresses = []string{}
	}
}

// Copy returns a deep copy of the state.
func (s *State) Copy() *State {
	c := &State{
		Step:           s.Step,
		CompletedSteps: slices.Clone(s.CompletedSteps),
		Addresses:      maps.Clone(s.Addresses),
		TokenAddresses: slices.Clone(s.TokenAddresses),
		VaultAddresses: slices.Clone(s.VaultAddresses),
		Timestamp:      s.Timestamp,
	}
	c.normalize()
	return c
}

// IsCompleted reports whether the named step finished in a prior attempt.
func (s *State) IsCompleted(step string) bool {
	return slices.Contains(s.CompletedSteps, step)
}

// MarkCompleted appends step to the completion log. Duplicates are ignored.
func (s *State) MarkCompleted(step string) {
	if !s.IsCompleted(step) {
		s.CompletedSteps = append(s.CompletedSteps, step)
	}
}

// Apply merges the values produced by a step into the state.
func (s *State) Apply(result *StepResult) {
	if result == nil {
		return
	}
	s.normalize()
	for name, addr := range result.Addresses {
		s.Addresses[name] = addr
	}
	if result.TokenAddresses != nil {
		s.TokenAddresses = slices.Clone(result.TokenAddresses)
	}
	if result.VaultAddresses != nil {
		s.VaultAddresses = slices.Clone(result.VaultAddresses)
	}
}

// Address returns a recorded address by logical name.
func (s *State) Address(name string) (string, bool) {
	addr, ok := s.Addresses[name]
	return addr, ok && addr != ""
}

// FirstAddress returns the first recorded address among names.
func (s *State) FirstAddress(names ...string) (string, bool) {
	for _, name := range names {
		if addr, ok := s.Address(name); ok {
			return addr, true
		}
	}
	return "", false
}

// StateReader provides read-only access to deployment state
type StateReader interface {
	// Address returns a recorded address by logical name
	Address(name string) (string, bool)

	// FirstAddress returns the first recorded address among names
	FirstAddress(names ...string) (string, bool)

	// Snapshot returns a deep copy of the full state
	Snapshot() *State
}

// Snapshot implements StateReader.
func (s *State) Snapshot() *State {
	return s.Copy()
}

var _ StateReader = (*State)(nil)
