package chatgate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry is the process-wide mapping from session ID to live Session.
// It is safe for concurrent use by request handlers, provider event
// callbacks, and timers.
//
// The registry also maintains an advisory index file listing the known
// session IDs. The index exists for operators and restart bookkeeping
// only; the credential directory tree remains the authority for what can
// be restored.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	indexPath string
}

// NewRegistry creates an empty Registry. indexPath names the advisory
// index file; an empty path disables index persistence.
func NewRegistry(indexPath string) *Registry {
	return &Registry{
		sessions:  make(map[string]*Session),
		indexPath: indexPath,
	}
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Put registers a session under its ID. It fails with ErrAlreadyExists
// if the ID is taken.
func (r *Registry) Put(id string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return ErrAlreadyExists
	}
	r.sessions[id] = s
	return nil
}

// Remove deregisters a session and reports whether it was present.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// List returns a snapshot of the registered sessions in no particular
// order.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// IDs returns the registered session IDs, sorted for stable output.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of registered sessions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PersistIndex writes the current ID set to the advisory index file.
// Failures are logged and swallowed: the index is a convenience artifact
// and must never take down a membership change that already happened.
func (r *Registry) PersistIndex() {
	if r.indexPath == "" {
		return
	}

	ids := r.IDs()
	data, err := json.MarshalIndent(ids, "", "  ")
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "PersistIndex",
			"error":    err.Error(),
		}).Error("Failed to encode session index")
		return
	}

	if err := os.MkdirAll(filepath.Dir(r.indexPath), 0o755); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "PersistIndex",
			"path":     r.indexPath,
			"error":    err.Error(),
		}).Error("Failed to create index directory")
		return
	}
	if err := os.WriteFile(r.indexPath, data, 0o644); err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "PersistIndex",
			"path":     r.indexPath,
			"error":    err.Error(),
		}).Error("Failed to write session index")
		return
	}

	logrus.WithFields(logrus.Fields{
		"function": "PersistIndex",
		"path":     r.indexPath,
		"sessions": len(ids),
	}).Debug("Session index persisted")
}
