// Package sim implements the provider boundary without a network.
//
// It mirrors the observable behavior of a real chat-network binding:
// connections progress through connecting/open/closed states, unpaired
// sessions receive a one-time login code, pairing persists credential
// material to the session's credential directory, and sends return
// receipts. The daemon uses it as its development-mode provider; tests
// drive it either automatically or event by event in manual mode.
package sim

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate/provider"
)

// Connector constructs simulated provider connections.
type Connector struct {
	mu       sync.Mutex
	manual   bool
	latency  time.Duration
	failNext error
	handles  map[string]*Handle
	created  []*Handle
}

// NewConnector creates a Connector in automatic mode: connections emit
// their lifecycle events on their own shortly after Connect returns.
func NewConnector() *Connector {
	return &Connector{handles: make(map[string]*Handle)}
}

// SetManual toggles manual mode. In manual mode a connection emits no
// events by itself; the caller drives it through EmitState, EmitLoginCode
// and Pair.
func (c *Connector) SetManual(manual bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual = manual
}

// SetLatency delays automatic events and sends by the given duration.
func (c *Connector) SetLatency(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latency = d
}

// FailNext makes the next Connect call fail with err.
func (c *Connector) FailNext(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNext = err
}

// Handle returns the most recent connection whose credential directory
// base name matches id, or nil.
func (c *Connector) Handle(id string) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles[id]
}

// Created returns every handle this connector has constructed, in order.
func (c *Connector) Created() []*Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Handle(nil), c.created...)
}

// Connect implements provider.Connector.
func (c *Connector) Connect(cfg provider.Config, hooks provider.Hooks) (provider.Handle, error) {
	c.mu.Lock()
	if err := c.failNext; err != nil {
		c.failNext = nil
		c.mu.Unlock()
		return nil, err
	}
	manual := c.manual
	latency := c.latency
	c.mu.Unlock()

	creds, err := loadCredentials(cfg.CredsDir)
	if err != nil {
		return nil, err
	}

	h := &Handle{
		connector: c,
		cfg:       cfg,
		hooks:     hooks,
		latency:   latency,
	}
	if creds != nil {
		h.identity = creds.JID
	}

	id := filepath.Base(cfg.CredsDir)
	c.mu.Lock()
	c.handles[id] = h
	c.created = append(c.created, h)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"function":  "Connect",
		"creds_dir": cfg.CredsDir,
		"paired":    creds != nil,
		"manual":    manual,
	}).Debug("Simulated provider connection created")

	if !manual {
		go h.autoConnect(creds != nil)
	}
	return h, nil
}

// SentMessage records one payload accepted by a simulated connection.
type SentMessage struct {
	To      string
	Text    string
	Media   *provider.Media
	Receipt provider.Receipt
}

// Handle is a simulated provider connection.
type Handle struct {
	connector *Connector
	cfg       provider.Config
	hooks     provider.Hooks
	latency   time.Duration

	mu       sync.Mutex
	identity string
	closed   bool
	sent     []SentMessage
}

// autoConnect emits the standard event sequence for a new connection:
// connecting, then either open (credentials on disk) or a login code.
func (h *Handle) autoConnect(paired bool) {
	h.sleep()
	h.EmitState(provider.StateConnecting, provider.CauseUnknown)
	if paired {
		h.EmitState(provider.StateOpen, provider.CauseUnknown)
		return
	}
	h.EmitLoginCode(newLoginCode())
}

// SetLatency delays this handle's sends by the given duration.
func (h *Handle) SetLatency(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.latency = d
}

func (h *Handle) sleep() {
	h.mu.Lock()
	d := h.latency
	h.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}

// EmitState delivers a connection state event to the registered hooks.
// Closed handles stay silent.
func (h *Handle) EmitState(state provider.State, cause provider.Cause) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	hook := h.hooks.OnState
	h.mu.Unlock()
	if hook != nil {
		hook(state, cause)
	}
}

// EmitLoginCode delivers a login code event to the registered hooks.
func (h *Handle) EmitLoginCode(code string) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	hook := h.hooks.OnLoginCode
	h.mu.Unlock()
	if hook != nil {
		hook(code)
	}
}

// Pair completes the login handshake for the given phone number: fresh
// credential material is written to the credential directory, the
// credential hook fires, and the connection opens.
func (h *Handle) Pair(number string) error {
	creds, err := generateCredentials(number, h.cfg.JIDDomain)
	if err != nil {
		return err
	}
	if err := saveCredentials(h.cfg.CredsDir, creds); err != nil {
		return err
	}

	h.mu.Lock()
	h.identity = creds.JID
	hook := h.hooks.OnCredentials
	h.mu.Unlock()

	if hook != nil {
		hook()
	}
	h.EmitState(provider.StateOpen, provider.CauseUnknown)
	return nil
}

// Drop simulates the connection closing with the given cause.
func (h *Handle) Drop(cause provider.Cause) {
	h.EmitState(provider.StateClosed, cause)
}

// Sent returns a snapshot of the messages this connection accepted.
func (h *Handle) Sent() []SentMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SentMessage, len(h.sent))
	copy(out, h.sent)
	return out
}

// Closed reports whether Close has been called.
func (h *Handle) Closed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// SendText implements provider.Handle.
func (h *Handle) SendText(ctx context.Context, to string, text string) (*provider.Receipt, error) {
	return h.record(ctx, SentMessage{To: to, Text: text})
}

// SendMedia implements provider.Handle.
func (h *Handle) SendMedia(ctx context.Context, to string, media provider.Media) (*provider.Receipt, error) {
	m := media
	return h.record(ctx, SentMessage{To: to, Media: &m})
}

func (h *Handle) record(ctx context.Context, msg SentMessage) (*provider.Receipt, error) {
	h.mu.Lock()
	latency := h.latency
	h.mu.Unlock()

	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, errors.New("connection closed")
	}
	if h.identity == "" {
		return nil, errors.New("connection is not authenticated")
	}

	msg.Receipt = provider.Receipt{
		MessageID: uuid.NewString(),
		Timestamp: time.Now().UTC(),
	}
	h.sent = append(h.sent, msg)
	return &msg.Receipt, nil
}

// Identity implements provider.Handle.
func (h *Handle) Identity() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.identity
}

// Logout implements provider.Handle. The remote side invalidates the
// stored credentials, which surfaces as a logged-out disconnect.
func (h *Handle) Logout(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	h.identity = ""
	h.mu.Unlock()
	h.EmitState(provider.StateClosed, provider.CauseLoggedOut)
	return nil
}

// Close implements provider.Handle.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

// newLoginCode mints an opaque one-time pairing code.
func newLoginCode() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("code-%d", time.Now().UnixNano())
	}
	return base64.StdEncoding.EncodeToString(buf)
}
