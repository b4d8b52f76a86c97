package chatgate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate/observability"
	"github.com/opd-ai/chatgate/provider"
	"github.com/opd-ai/chatgate/reconnect"
)

// Session is the per-session connection state machine. It wraps a single
// provider connection handle and owns the session's phase, pending login
// code, and retry counter.
//
// A session's fields are mutated from three directions: request handlers,
// provider event callbacks, and its own timers. The session mutex
// serializes all of them. Timers carry the generation stamp current at
// scheduling time; a bumped generation turns a stale timer into a no-op
// instead of letting it corrupt newer state.
type Session struct {
	id string
	gw *Gateway

	mu             sync.Mutex
	phase          Phase
	loginCode      string
	loginIssuedAt  time.Time
	retryAttempts  int
	handle         provider.Handle
	identity       string
	gen            uint64
	reconnectTimer *time.Timer
	closed         bool

	clock TimeProvider
}

// newSession creates a Session in the disconnected phase. It is not
// registered and holds no provider connection until Initialize runs.
func newSession(gw *Gateway, id string) *Session {
	return &Session{
		id:    id,
		gw:    gw,
		phase: PhaseDisconnected,
		clock: gw.clock,
	}
}

// ID returns the session's identifier.
func (s *Session) ID() string {
	return s.id
}

// Phase returns the session's current connection phase.
func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// LoginCode returns the pending login code, if one is currently valid.
func (s *Session) LoginCode() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loginCode, s.loginCode != ""
}

// RetryAttempts returns the reconnection attempts made in the current
// outage.
func (s *Session) RetryAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryAttempts
}

// Status is the externally visible projection of a session's state.
type Status struct {
	SessionID          string     `json:"sessionId"`
	Phase              string     `json:"phase"`
	Connected          bool       `json:"connected"`
	HasLoginCode       bool       `json:"hasLoginCode"`
	LoginCodeExpiresAt *time.Time `json:"loginCodeExpiresAt,omitempty"`
	RetryAttempts      int        `json:"retryAttempts"`
	Identity           string     `json:"identity,omitempty"`
}

// Status returns a consistent snapshot of the session's state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		SessionID:     s.id,
		Phase:         s.phase.String(),
		Connected:     s.phase == PhaseConnected,
		HasLoginCode:  s.loginCode != "",
		RetryAttempts: s.retryAttempts,
		Identity:      s.identity,
	}
	if s.loginCode != "" {
		expiresAt := s.loginIssuedAt.Add(s.gw.settings.LoginCodeTTL)
		st.LoginCodeExpiresAt = &expiresAt
	}
	return st
}

// Initialize ensures the session's credential directory exists, opens a
// provider connection with its event hooks subscribed, and moves the
// session into the connecting phase. The connection itself proceeds
// asynchronously; Initialize returns once the subscription is
// established. A construction failure surfaces as *ProviderInitError and
// leaves the session disconnected.
func (s *Session) Initialize() error {
	dir, err := s.gw.creds.EnsureDir(s.id)
	if err != nil {
		return &ProviderInitError{SessionID: s.id, Err: err}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &ProviderInitError{SessionID: s.id, Err: errors.New("session closed")}
	}
	s.phase = PhaseConnecting
	gen := s.gen
	s.mu.Unlock()

	cfg := provider.DefaultConfig()
	cfg.CredsDir = dir
	cfg.JIDDomain = s.gw.settings.JIDDomain
	cfg.QueryTimeout = s.gw.settings.QueryTimeout

	hooks := provider.Hooks{
		OnState: func(state provider.State, cause provider.Cause) {
			s.handleState(gen, state, cause)
		},
		OnLoginCode: func(code string) {
			s.handleLoginCode(gen, code)
		},
		OnCredentials: func() {
			s.handleCredentials(gen)
		},
	}

	handle, err := s.gw.connector.Connect(cfg, hooks)
	if err != nil {
		s.mu.Lock()
		s.phase = PhaseDisconnected
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "Initialize",
			"session_id": s.id,
			"error":      err.Error(),
		}).Error("Provider connection failed")
		return &ProviderInitError{SessionID: s.id, Err: err}
	}

	s.mu.Lock()
	if s.closed || gen != s.gen {
		// The session was torn down or reconnected while Connect ran.
		s.mu.Unlock()
		_ = handle.Close()
		return &ProviderInitError{SessionID: s.id, Err: errors.New("session closed")}
	}
	s.handle = handle
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":   "Initialize",
		"session_id": s.id,
		"creds_dir":  dir,
	}).Info("Session initialization started")
	return nil
}

// handleState processes a connection-phase event from the provider.
func (s *Session) handleState(gen uint64, state provider.State, cause provider.Cause) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}

	logrus.WithFields(logrus.Fields{
		"function":   "handleState",
		"session_id": s.id,
		"state":      state.String(),
		"cause":      cause.String(),
		"attempts":   s.retryAttempts,
	}).Debug("Connection state update")

	switch state {
	case provider.StateConnecting:
		s.phase = PhaseConnecting
		s.mu.Unlock()

	case provider.StateOpen:
		s.phase = PhaseConnected
		s.loginCode = ""
		s.retryAttempts = 0
		if s.handle != nil {
			s.identity = s.handle.Identity()
		}
		identity := s.identity
		s.mu.Unlock()

		s.gw.registry.PersistIndex()
		logrus.WithFields(logrus.Fields{
			"function":   "handleState",
			"session_id": s.id,
			"identity":   identity,
		}).Info("Session connected")

	case provider.StateClosed:
		s.handleClosed(cause)
	}
}

// handleClosed applies the reconnection policy after a disconnect.
// Callers hold the session mutex; handleClosed releases it.
func (s *Session) handleClosed(cause provider.Cause) {
	s.phase = PhaseDisconnected
	s.loginCode = ""
	s.handle = nil
	// Invalidate timers and events still referencing the connection
	// that just closed.
	s.gen++

	decision := reconnect.Classify(cause, s.retryAttempts, s.gw.settings.RetryLimit)
	observability.RecordReconnectDecision(decision.String(), cause.String())

	logrus.WithFields(logrus.Fields{
		"function":   "handleClosed",
		"session_id": s.id,
		"cause":      cause.String(),
		"attempts":   s.retryAttempts,
		"decision":   decision.String(),
	}).Info("Session disconnected")

	switch decision {
	case reconnect.Discard:
		s.closed = true
		s.mu.Unlock()
		s.Cleanup()
		s.gw.deregister(s.id)

	case reconnect.Retry:
		// Classify only returns Retry below the attempt limit, so the
		// incremented count never exceeds it.
		s.retryAttempts++
		gen := s.gen
		if s.reconnectTimer != nil {
			s.reconnectTimer.Stop()
		}
		s.reconnectTimer = time.AfterFunc(s.gw.settings.ReconnectDelay, func() {
			s.retryInitialize(gen)
		})
		attempts := s.retryAttempts
		s.mu.Unlock()
		logrus.WithFields(logrus.Fields{
			"function":   "handleClosed",
			"session_id": s.id,
			"attempt":    attempts,
			"limit":      s.gw.settings.RetryLimit,
			"delay":      s.gw.settings.ReconnectDelay.String(),
		}).Info("Reconnection scheduled")

	case reconnect.GiveUp:
		// Credentials stay on disk; an operator can recreate the
		// session and reconnect manually.
		s.closed = true
		s.mu.Unlock()
		s.gw.deregister(s.id)
	}
}

// retryInitialize runs a scheduled reconnection attempt. A stale timer
// (generation mismatch) does nothing.
func (s *Session) retryInitialize(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil
	s.mu.Unlock()

	if err := s.Initialize(); err != nil {
		// Contained: the session stays registered and disconnected so
		// an operator can trigger a manual reconnect.
		logrus.WithFields(logrus.Fields{
			"function":   "retryInitialize",
			"session_id": s.id,
			"error":      err.Error(),
		}).Error("Scheduled reconnection failed")
	}
}

// handleLoginCode records a freshly issued login code and schedules its
// expiry. The expiry action verifies it still refers to the same code, so
// a code issued after a fast reconnect survives the older code's timer.
func (s *Session) handleLoginCode(gen uint64, code string) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.loginCode = code
	s.loginIssuedAt = s.clock.Now()
	s.phase = PhaseAwaitingLogin
	ttl := s.gw.settings.LoginCodeTTL
	s.mu.Unlock()

	time.AfterFunc(ttl, func() {
		s.expireLoginCode(gen, code)
	})

	logrus.WithFields(logrus.Fields{
		"function":   "handleLoginCode",
		"session_id": s.id,
		"ttl":        ttl.String(),
	}).Info("Login code issued")
}

// expireLoginCode clears a login code that reached the end of its
// validity window. It only acts if the session is still awaiting login
// with the exact code it was scheduled for.
func (s *Session) expireLoginCode(gen uint64, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.gen {
		return
	}
	if s.phase != PhaseAwaitingLogin || s.loginCode != code {
		return
	}
	s.loginCode = ""
	logrus.WithFields(logrus.Fields{
		"function":   "expireLoginCode",
		"session_id": s.id,
	}).Info("Login code expired")
}

// handleCredentials notes that the provider persisted updated credential
// material.
func (s *Session) handleCredentials(gen uint64) {
	s.mu.Lock()
	stale := s.closed || gen != s.gen
	s.mu.Unlock()
	if stale {
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":   "handleCredentials",
		"session_id": s.id,
	}).Debug("Credentials updated")
}

// sendText delivers a text message through the session's provider handle.
func (s *Session) sendText(ctx context.Context, to, text string) (*provider.Receipt, error) {
	h, err := s.connectedHandle()
	if err != nil {
		return nil, err
	}
	receipt, err := h.SendText(ctx, to, text)
	return receipt, translateSendError(err)
}

// sendMedia delivers a media payload through the session's provider
// handle.
func (s *Session) sendMedia(ctx context.Context, to string, media provider.Media) (*provider.Receipt, error) {
	h, err := s.connectedHandle()
	if err != nil {
		return nil, err
	}
	receipt, err := h.SendMedia(ctx, to, media)
	return receipt, translateSendError(err)
}

// connectedHandle returns the provider handle if and only if the session
// is currently connected.
func (s *Session) connectedHandle() (provider.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseConnected || s.handle == nil {
		return nil, ErrNotConnected
	}
	return s.handle, nil
}

// translateSendError maps provider deadline failures onto the gateway's
// transient timeout error.
func translateSendError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrProviderTimeout
	}
	return err
}

// ForceReconnect resets the retry budget, drops any pending login code
// and timers, closes the current provider handle if one exists, and runs
// Initialize again. It is available from any phase.
func (s *Session) ForceReconnect() error {
	s.mu.Lock()
	s.gen++
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.retryAttempts = 0
	s.loginCode = ""
	s.phase = PhaseDisconnected
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		if err := h.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "ForceReconnect",
				"session_id": s.id,
				"error":      err.Error(),
			}).Warn("Error closing provider handle")
		}
	}

	logrus.WithFields(logrus.Fields{
		"function":   "ForceReconnect",
		"session_id": s.id,
	}).Info("Forcing reconnection")
	return s.Initialize()
}

// Cleanup purges the session's credential directory. It is idempotent and
// never propagates errors; it runs on failure paths where a second fault
// must stay contained.
func (s *Session) Cleanup() {
	s.gw.creds.Purge(s.id)
}

// terminated reports whether the session has been torn down, either by
// detach or by a terminal reconnection decision.
func (s *Session) terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// detach permanently detaches the session from its provider connection:
// further events and timers become no-ops. It returns the handle that was
// active, if any, for the caller to close or log out.
func (s *Session) detach() provider.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	h := s.handle
	s.handle = nil
	s.phase = PhaseDisconnected
	s.loginCode = ""
	return h
}

// Close tears the session down: events are detached and the provider
// handle, if any, is closed. Safe to call more than once.
func (s *Session) Close() error {
	h := s.detach()
	if h == nil {
		return nil
	}
	return h.Close()
}
