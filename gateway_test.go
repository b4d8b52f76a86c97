package chatgate

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/chatgate/provider"
)

func TestCreateSessionDuplicate(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	h.createSession(t, "alpha")

	err := h.gw.CreateSession("alpha")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestCreateSessionInvalidID(t *testing.T) {
	h := newTestHarness(t, shortSettings())

	for _, id := range []string{"", ".", "..", "a/b", `a\b`} {
		err := h.gw.CreateSession(id)
		assert.ErrorIs(t, err, ErrInvalidSessionID, "id %q", id)
	}
}

func TestCreateSessionProviderFailure(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	h.connector.FailNext(errors.New("socket construction failed"))

	err := h.gw.CreateSession("alpha")
	var initErr *ProviderInitError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, "alpha", initErr.SessionID)

	// Nothing was registered.
	_, ok := h.gw.Registry().Get("alpha")
	assert.False(t, ok)
}

func TestRegisterBacksOutTerminatedSession(t *testing.T) {
	// A terminal disconnect can classify the connection away after
	// Initialize returns but before the session is registered. The
	// registration must not leave a handle-less session behind.
	h := newTestHarness(t, shortSettings())

	s := newSession(h.gw, "alpha")
	require.NoError(t, s.Initialize())
	handle := h.connector.Handle("alpha")
	require.NotNil(t, handle)
	handle.Drop(provider.CauseBadCredentials)

	err := h.gw.register("alpha", s)
	var initErr *ProviderInitError
	require.ErrorAs(t, err, &initErr)

	_, ok := h.gw.Registry().Get("alpha")
	assert.False(t, ok)
}

func TestCreateSessionPersistsIndex(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	h.createSession(t, "alpha")

	data, err := os.ReadFile(h.indexPath)
	require.NoError(t, err)
	var ids []string
	require.NoError(t, json.Unmarshal(data, &ids))
	assert.Equal(t, []string{"alpha"}, ids)
}

func TestDeleteSession(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	handle := h.createSession(t, "alpha")
	h.pair(t, handle, "62811222333")
	require.True(t, h.store.HasCredentials("alpha"))

	require.NoError(t, h.gw.DeleteSession("alpha"))

	_, ok := h.gw.Registry().Get("alpha")
	assert.False(t, ok)
	assert.False(t, h.store.HasCredentials("alpha"))
	assert.True(t, handle.Closed())

	assert.ErrorIs(t, h.gw.DeleteSession("alpha"), ErrSessionNotFound)
}

func TestResetSessionReplacesRecord(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	handle := h.createSession(t, "alpha")
	h.pair(t, handle, "62811222333")

	old, _ := h.gw.Registry().Get("alpha")
	require.NoError(t, h.gw.ResetSession("alpha"))

	fresh, ok := h.gw.Registry().Get("alpha")
	require.True(t, ok, "session stays registered under the same id")
	assert.NotSame(t, old, fresh)
	assert.Equal(t, PhaseConnecting, fresh.Phase())
	assert.True(t, handle.Closed())
	assert.False(t, h.store.HasCredentials("alpha"), "reset purges credentials")
}

func TestReconnectSessionUnknown(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	assert.ErrorIs(t, h.gw.ReconnectSession("ghost"), ErrSessionNotFound)
	assert.ErrorIs(t, h.gw.ResetSession("ghost"), ErrSessionNotFound)
}

func TestSessionStatusAndList(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	handle := h.createSession(t, "alpha")
	h.pair(t, handle, "62811222333")
	h.createSession(t, "beta")

	status, err := h.gw.SessionStatus("alpha")
	require.NoError(t, err)
	assert.Equal(t, "alpha", status.SessionID)
	assert.True(t, status.Connected)
	assert.Equal(t, "62811222333@s.whatsapp.net", status.Identity)

	_, err = h.gw.SessionStatus("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Len(t, h.gw.Sessions(), 2)
}

func TestLoginCodeAccessor(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	handle := h.createSession(t, "alpha")

	code, err := h.gw.LoginCode("alpha")
	require.NoError(t, err)
	assert.Empty(t, code, "no code before the provider issues one")

	handle.EmitLoginCode("pair-me")
	code, err = h.gw.LoginCode("alpha")
	require.NoError(t, err)
	assert.Equal(t, "pair-me", code)

	_, err = h.gw.LoginCode("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestShutdownClosesSessionsAndRefusesWork(t *testing.T) {
	h := newTestHarness(t, shortSettings())
	handle := h.createSession(t, "alpha")
	h.pair(t, handle, "62811222333")

	h.gw.Shutdown()
	assert.True(t, handle.Closed())

	assert.ErrorIs(t, h.gw.CreateSession("beta"), ErrShuttingDown)
	assert.ErrorIs(t, h.gw.DeleteSession("alpha"), ErrShuttingDown)
	assert.ErrorIs(t, h.gw.ReconnectSession("alpha"), ErrShuttingDown)

	// Shutdown is idempotent.
	h.gw.Shutdown()
}
