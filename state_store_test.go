package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "deployment_state.json")
	store, err := NewFileStateStore(path)
	require.NoError(t, err)
	require.Equal(t, path, store.Path())

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "missing file means no prior run")

	state := NewState()
	state.Step = "deploy_tokens"
	state.CompletedSteps = []string{"predict_addresses", "validate_bgt_config"}
	state.Addresses["BGT_ADDRESS"] = "0x1111111111111111111111111111111111111111"
	state.TokenAddresses = []string{"0xaa", "0xbb"}
	state.Timestamp = "2025-07-21T12:00:00Z"
	require.NoError(t, store.Save(ctx, state))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, state, loaded)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temporary files left behind")

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx), "deleting twice is fine")
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestFileStateStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := NewFileStateStore(path)
	require.NoError(t, err)

	state := NewState()
	state.Step = "predict_addresses"
	state.CompletedSteps = []string{"predict_addresses"}
	state.Addresses["BGT_ADDRESS"] = "0x01"
	state.Timestamp = "2025-07-21T12:00:00Z"
	require.NoError(t, store.Save(context.Background(), state))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"step": "predict_addresses",
		"completed_steps": ["predict_addresses"],
		"addresses": {"BGT_ADDRESS": "0x01"},
		"token_addresses": [],
		"vault_addresses": [],
		"timestamp": "2025-07-21T12:00:00Z"
	}`, string(data))
}

func TestFileStateStoreLoadsPartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"completed_steps":["predict_addresses"]}`), 0644))
	store, err := NewFileStateStore(path)
	require.NoError(t, err)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, loaded.IsCompleted("predict_addresses"))
	require.NotNil(t, loaded.Addresses)
	require.NotNil(t, loaded.VaultAddresses)
}

func TestFileStateStoreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{\"step\": "), 0644))
	store, err := NewFileStateStore(path)
	require.NoError(t, err)

	_, err = store.Load(context.Background())
	require.Error(t, err)
	require.True(t, IsKind(err, ErrorKindStateLoad))
}

func TestNewFileStateStoreRequiresPath(t *testing.T) {
	_, err := NewFileStateStore("")
	require.Error(t, err)
}

func TestMemoryStateStoreCopies(t *testing.T) {
	ctx := context.Background()
	initial := NewState()
	initial.CompletedSteps = []string{"a"}
	store := NewMemoryStateStore(initial)

	initial.CompletedSteps[0] = "mutated"
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, loaded.CompletedSteps)

	loaded.MarkCompleted("b")
	again, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"a"}, again.CompletedSteps)

	require.NoError(t, store.Save(ctx, loaded))
	require.Equal(t, 1, store.Saves())
	require.NoError(t, store.Delete(ctx))
	gone, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, gone)
}

func TestStateApply(t *testing.T) {
	state := NewState()
	state.Addresses["BGT_ADDRESS"] = "0x01"
	state.TokenAddresses = []string{"0xold"}

	state.Apply(&StepResult{
		Addresses:      map[string]string{"BGT_DEPLOYED": "0x02"},
		VaultAddresses: []string{"0xv1"},
	})
	require.Equal(t, map[string]string{"BGT_ADDRESS": "0x01", "BGT_DEPLOYED": "0x02"}, state.Addresses)
	require.Equal(t, []string{"0xold"}, state.TokenAddresses, "nil lists leave the field alone")
	require.Equal(t, []string{"0xv1"}, state.VaultAddresses)

	state.Apply(nil)
	addr, ok := state.FirstAddress("BERACHEF_ADDRESS", "BGT_DEPLOYED")
	require.True(t, ok)
	require.Equal(t, "0x02", addr)

	state.MarkCompleted("a")
	state.MarkCompleted("a")
	require.Equal(t, []string{"a"}, state.CompletedSteps)
}
