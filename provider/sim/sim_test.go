package sim

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/chatgate/provider"
)

// stateRecorder collects state events under a lock so provider goroutines
// and the test can share it.
type stateRecorder struct {
	mu     sync.Mutex
	states []provider.State
	causes []provider.Cause
	codes  []string
}

func (r *stateRecorder) hooks() provider.Hooks {
	return provider.Hooks{
		OnState: func(state provider.State, cause provider.Cause) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, state)
			r.causes = append(r.causes, cause)
		},
		OnLoginCode: func(code string) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.codes = append(r.codes, code)
		},
	}
}

func (r *stateRecorder) snapshot() ([]provider.State, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]provider.State(nil), r.states...), append([]string(nil), r.codes...)
}

func testConfig(t *testing.T) provider.Config {
	t.Helper()
	cfg := provider.DefaultConfig()
	cfg.CredsDir = filepath.Join(t.TempDir(), "session-1")
	require.NoError(t, os.MkdirAll(cfg.CredsDir, 0o700))
	return cfg
}

func TestConnectUnpairedIssuesLoginCode(t *testing.T) {
	connector := NewConnector()
	rec := &stateRecorder{}
	cfg := testConfig(t)

	h, err := connector.Connect(cfg, rec.hooks())
	require.NoError(t, err)
	defer h.Close()

	require.Eventually(t, func() bool {
		states, codes := rec.snapshot()
		return len(states) >= 1 && len(codes) == 1
	}, time.Second, 5*time.Millisecond)

	states, codes := rec.snapshot()
	assert.Equal(t, provider.StateConnecting, states[0])
	assert.NotEmpty(t, codes[0])
	assert.Empty(t, h.Identity())
}

func TestPairPersistsCredentialsAndOpens(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)
	rec := &stateRecorder{}
	cfg := testConfig(t)

	h, err := connector.Connect(cfg, rec.hooks())
	require.NoError(t, err)
	sim := h.(*Handle)

	require.NoError(t, sim.Pair("62811222333"))
	assert.Equal(t, "62811222333@s.whatsapp.net", h.Identity())
	assert.FileExists(t, filepath.Join(cfg.CredsDir, credsFile))

	states, _ := rec.snapshot()
	require.NotEmpty(t, states)
	assert.Equal(t, provider.StateOpen, states[len(states)-1])

	// A later connection finds the persisted credentials.
	creds, err := loadCredentials(cfg.CredsDir)
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "62811222333@s.whatsapp.net", creds.JID)
	assert.Len(t, creds.PublicKey, 32)
}

func TestConnectCorruptCredentials(t *testing.T) {
	connector := NewConnector()
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.CredsDir, credsFile), []byte("not-json"), 0o600))

	_, err := connector.Connect(cfg, provider.Hooks{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestConnectExistingCredentialsOpens(t *testing.T) {
	connector := NewConnector()
	cfg := testConfig(t)
	require.NoError(t, WriteCredentials(cfg.CredsDir, "62811222333", cfg.JIDDomain))

	rec := &stateRecorder{}
	h, err := connector.Connect(cfg, rec.hooks())
	require.NoError(t, err)
	defer h.Close()

	require.Eventually(t, func() bool {
		states, _ := rec.snapshot()
		return len(states) == 2 && states[1] == provider.StateOpen
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "62811222333@s.whatsapp.net", h.Identity())
}

func TestFailNext(t *testing.T) {
	connector := NewConnector()
	boom := errors.New("socket construction failed")
	connector.FailNext(boom)

	_, err := connector.Connect(testConfig(t), provider.Hooks{})
	assert.ErrorIs(t, err, boom)

	// Only the next call fails.
	_, err = connector.Connect(testConfig(t), provider.Hooks{})
	assert.NoError(t, err)
}

func TestSendRecordsReceipts(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)
	cfg := testConfig(t)
	require.NoError(t, WriteCredentials(cfg.CredsDir, "62811222333", cfg.JIDDomain))

	h, err := connector.Connect(cfg, provider.Hooks{})
	require.NoError(t, err)
	sim := h.(*Handle)

	r1, err := h.SendText(context.Background(), "62899@s.whatsapp.net", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, r1.MessageID)

	r2, err := h.SendMedia(context.Background(), "62899@s.whatsapp.net", provider.Media{
		Path: "/tmp/pic.jpg", Kind: "image", Caption: "hi",
	})
	require.NoError(t, err)
	assert.NotEqual(t, r1.MessageID, r2.MessageID)

	sent := sim.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello", sent[0].Text)
	require.NotNil(t, sent[1].Media)
	assert.Equal(t, "image", sent[1].Media.Kind)
}

func TestSendUnauthenticatedFails(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)

	h, err := connector.Connect(testConfig(t), provider.Hooks{})
	require.NoError(t, err)

	_, err = h.SendText(context.Background(), "62899@s.whatsapp.net", "hello")
	assert.Error(t, err)
}

func TestSendRespectsContext(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)
	connector.SetLatency(200 * time.Millisecond)
	cfg := testConfig(t)
	require.NoError(t, WriteCredentials(cfg.CredsDir, "62811222333", cfg.JIDDomain))

	h, err := connector.Connect(cfg, provider.Hooks{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = h.SendText(ctx, "62899@s.whatsapp.net", "hello")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLogoutEmitsLoggedOut(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)
	cfg := testConfig(t)
	require.NoError(t, WriteCredentials(cfg.CredsDir, "62811222333", cfg.JIDDomain))

	rec := &stateRecorder{}
	h, err := connector.Connect(cfg, rec.hooks())
	require.NoError(t, err)

	require.NoError(t, h.Logout(context.Background()))
	states, _ := rec.snapshot()
	require.NotEmpty(t, states)
	assert.Equal(t, provider.StateClosed, states[len(states)-1])
	rec.mu.Lock()
	assert.Equal(t, provider.CauseLoggedOut, rec.causes[len(rec.causes)-1])
	rec.mu.Unlock()
	assert.Empty(t, h.Identity())
}

func TestClosedHandleStaysSilent(t *testing.T) {
	connector := NewConnector()
	connector.SetManual(true)

	rec := &stateRecorder{}
	h, err := connector.Connect(testConfig(t), rec.hooks())
	require.NoError(t, err)
	sim := h.(*Handle)

	require.NoError(t, h.Close())
	sim.EmitState(provider.StateOpen, provider.CauseUnknown)
	sim.EmitLoginCode("stale")

	states, codes := rec.snapshot()
	assert.Empty(t, states)
	assert.Empty(t, codes)
}
