package chatgate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryPutGetRemove(t *testing.T) {
	r := NewRegistry("")
	s := &Session{id: "alpha"}

	require.NoError(t, r.Put("alpha", s))
	got, ok := r.Get("alpha")
	assert.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Size())

	// A second put under the same ID fails.
	err := r.Put("alpha", &Session{id: "alpha"})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	assert.True(t, r.Remove("alpha"))
	_, ok = r.Get("alpha")
	assert.False(t, ok)
	assert.Equal(t, 0, r.Size())

	// Removing an absent ID reports false.
	assert.False(t, r.Remove("alpha"))
}

func TestRegistryListAndIDs(t *testing.T) {
	r := NewRegistry("")
	require.NoError(t, r.Put("beta", &Session{id: "beta"}))
	require.NoError(t, r.Put("alpha", &Session{id: "alpha"}))

	assert.Len(t, r.List(), 2)
	assert.Equal(t, []string{"alpha", "beta"}, r.IDs())
}

func TestRegistryPersistIndex(t *testing.T) {
	indexPath := filepath.Join(t.TempDir(), "state", "sessions.json")
	r := NewRegistry(indexPath)
	require.NoError(t, r.Put("alpha", &Session{id: "alpha"}))
	require.NoError(t, r.Put("beta", &Session{id: "beta"}))

	r.PersistIndex()

	data, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal(data, &ids))
	assert.Equal(t, []string{"alpha", "beta"}, ids)

	r.Remove("beta")
	r.PersistIndex()
	data, err = os.ReadFile(indexPath)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &ids))
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestRegistryPersistIndexDisabled(t *testing.T) {
	r := NewRegistry("")
	require.NoError(t, r.Put("alpha", &Session{id: "alpha"}))
	// No index path configured: persisting is a silent no-op.
	r.PersistIndex()
}
