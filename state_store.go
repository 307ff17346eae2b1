package deploy

import (
	"context"
)

// StateStore persists deployment state between runs
type StateStore interface {
	// Load returns the persisted state, or nil if none exists
	Load(ctx context.Context) (*State, error)

	// Save replaces the persisted state
	Save(ctx context.Context, state *State) error

	// Delete removes the persisted state. Deleting a missing state is not an error
	Delete(ctx context.Context) error
}
