package chatgate

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate/credstore"
	"github.com/opd-ai/chatgate/observability"
	"github.com/opd-ai/chatgate/provider"
)

// logoutTimeout bounds the best-effort logout during session deletion.
const logoutTimeout = 5 * time.Second

// Gateway coordinates the session registry, the messaging provider, and
// the credential store. All externally driven session operations go
// through it; sessions call back into it when they terminate themselves.
type Gateway struct {
	settings  Settings
	connector provider.Connector
	creds     *credstore.Store
	registry  *Registry
	clock     TimeProvider

	shuttingDown atomic.Bool
}

// NewGateway creates a Gateway. The registry may already contain
// sessions (it usually does not; Restore populates it from disk).
func NewGateway(connector provider.Connector, creds *credstore.Store, registry *Registry, settings Settings) *Gateway {
	if settings.RetryLimit <= 0 {
		settings = DefaultSettings()
	}
	return &Gateway{
		settings:  settings,
		connector: connector,
		creds:     creds,
		registry:  registry,
		clock:     defaultTimeProvider,
	}
}

// Registry exposes the gateway's session registry.
func (g *Gateway) Registry() *Registry {
	return g.registry
}

// validSessionID rejects IDs that cannot safely name a credential
// sub-directory.
func validSessionID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, "/\\")
}

// CreateSession constructs, initializes, and registers a new session.
// Nothing is registered when provider initialization fails.
func (g *Gateway) CreateSession(id string) error {
	if g.shuttingDown.Load() {
		return ErrShuttingDown
	}
	if !validSessionID(id) {
		return ErrInvalidSessionID
	}
	if _, ok := g.registry.Get(id); ok {
		return ErrAlreadyExists
	}

	s := newSession(g, id)
	if err := s.Initialize(); err != nil {
		return err
	}
	if err := g.register(id, s); err != nil {
		return err
	}
	g.registry.PersistIndex()
	observability.SetActiveSessions(g.registry.Size())

	logrus.WithFields(logrus.Fields{
		"function":   "CreateSession",
		"session_id": id,
	}).Info("Session created")
	return nil
}

// DeleteSession logs the session out best-effort, purges its
// credentials, and removes it from the registry.
func (g *Gateway) DeleteSession(id string) error {
	if g.shuttingDown.Load() {
		return ErrShuttingDown
	}
	s, ok := g.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}

	if h := s.detach(); h != nil {
		ctx, cancel := context.WithTimeout(context.Background(), logoutTimeout)
		if err := h.Logout(ctx); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "DeleteSession",
				"session_id": id,
				"error":      err.Error(),
			}).Warn("Logout failed")
		}
		cancel()
		_ = h.Close()
	}

	s.Cleanup()
	g.deregister(id)

	logrus.WithFields(logrus.Fields{
		"function":   "DeleteSession",
		"session_id": id,
	}).Info("Session deleted")
	return nil
}

// ResetSession destroys the session's connection and credentials, then
// recreates a fresh session under the same ID. The caller pairs again
// with a new login code.
func (g *Gateway) ResetSession(id string) error {
	if g.shuttingDown.Load() {
		return ErrShuttingDown
	}
	s, ok := g.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}

	if h := s.detach(); h != nil {
		_ = h.Close()
	}
	s.Cleanup()
	g.registry.Remove(id)

	fresh := newSession(g, id)
	if err := fresh.Initialize(); err != nil {
		g.registry.PersistIndex()
		observability.SetActiveSessions(g.registry.Size())
		return err
	}
	if err := g.register(id, fresh); err != nil {
		g.registry.PersistIndex()
		observability.SetActiveSessions(g.registry.Size())
		return err
	}
	g.registry.PersistIndex()
	observability.SetActiveSessions(g.registry.Size())

	logrus.WithFields(logrus.Fields{
		"function":   "ResetSession",
		"session_id": id,
	}).Info("Session reset")
	return nil
}

// ReconnectSession forces the session to drop its connection and
// reconnect with a cleared retry budget.
func (g *Gateway) ReconnectSession(id string) error {
	if g.shuttingDown.Load() {
		return ErrShuttingDown
	}
	s, ok := g.registry.Get(id)
	if !ok {
		return ErrSessionNotFound
	}
	return s.ForceReconnect()
}

// SessionStatus returns the session's state projection.
func (g *Gateway) SessionStatus(id string) (Status, error) {
	s, ok := g.registry.Get(id)
	if !ok {
		return Status{}, ErrSessionNotFound
	}
	return s.Status(), nil
}

// Sessions returns status projections for all registered sessions.
func (g *Gateway) Sessions() []Status {
	sessions := g.registry.List()
	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	return out
}

// LoginCode returns the session's pending login code, or an empty string
// if none is currently valid.
func (g *Gateway) LoginCode(id string) (string, error) {
	s, ok := g.registry.Get(id)
	if !ok {
		return "", ErrSessionNotFound
	}
	code, _ := s.LoginCode()
	return code, nil
}

// register adds an initialized session to the registry. The reconnection
// policy can classify a connection away between Initialize returning and
// registration; a session terminated in that window is backed out so no
// handle-less entry lingers.
func (g *Gateway) register(id string, s *Session) error {
	if err := g.registry.Put(id, s); err != nil {
		// Lost a creation race; tear down the duplicate.
		_ = s.Close()
		return err
	}
	if s.terminated() {
		g.registry.Remove(id)
		return &ProviderInitError{
			SessionID: id,
			Err:       errors.New("connection discarded during initialization"),
		}
	}
	return nil
}

// deregister removes a session from the registry and persists the index.
// Sessions call it when the reconnection policy terminates them.
func (g *Gateway) deregister(id string) {
	if g.registry.Remove(id) {
		logrus.WithFields(logrus.Fields{
			"function":   "deregister",
			"session_id": id,
		}).Info("Session removed from registry")
	}
	g.registry.PersistIndex()
	observability.SetActiveSessions(g.registry.Size())
}

// Shutdown stops admitting operations and closes every session's
// provider handle best-effort. Close errors are logged, not retried.
func (g *Gateway) Shutdown() {
	if !g.shuttingDown.CompareAndSwap(false, true) {
		return
	}

	sessions := g.registry.List()
	logrus.WithFields(logrus.Fields{
		"function": "Shutdown",
		"sessions": len(sessions),
	}).Info("Shutting down gateway")

	for _, s := range sessions {
		if err := s.Close(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Shutdown",
				"session_id": s.ID(),
				"error":      err.Error(),
			}).Error("Error closing session")
		}
	}
}
