package chatgate

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opd-ai/chatgate/credstore"
	"github.com/opd-ai/chatgate/provider/sim"
)

// testHarness bundles a gateway with a manual-mode simulated provider and
// temp-dir storage. Tests drive provider events explicitly so state
// transitions are deterministic.
type testHarness struct {
	gw        *Gateway
	connector *sim.Connector
	store     *credstore.Store
	indexPath string
}

// shortSettings shrinks the lifecycle durations so timer-driven paths run
// inside a test.
func shortSettings() Settings {
	s := DefaultSettings()
	s.ReconnectDelay = 20 * time.Millisecond
	s.LoginCodeTTL = 200 * time.Millisecond
	s.QueryTimeout = time.Second
	return s
}

func newTestHarness(t *testing.T, settings Settings) *testHarness {
	t.Helper()
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "sessions.json")
	store := credstore.New(filepath.Join(dir, "auth"))
	connector := sim.NewConnector()
	connector.SetManual(true)

	return &testHarness{
		gw:        NewGateway(connector, store, NewRegistry(indexPath), settings),
		connector: connector,
		store:     store,
		indexPath: indexPath,
	}
}

// createSession creates a session and returns its current provider handle.
func (h *testHarness) createSession(t *testing.T, id string) *sim.Handle {
	t.Helper()
	require.NoError(t, h.gw.CreateSession(id))
	handle := h.connector.Handle(id)
	require.NotNil(t, handle)
	return handle
}

// pair completes the login flow for a session, leaving it connected.
func (h *testHarness) pair(t *testing.T, handle *sim.Handle, number string) {
	t.Helper()
	require.NoError(t, handle.Pair(number))
}
