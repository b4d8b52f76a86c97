// Package credstore manages the on-disk layout of per-session credential
// material.
//
// The credential directory tree is the authoritative record of which
// sessions can be restored after a restart. Each session owns one
// sub-directory named after its session ID; the provider reads and writes
// the directory's contents, while this package only creates, probes, and
// purges whole directories.
package credstore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// CredsFile is the minimal artifact a session directory must contain to
// be considered restorable.
const CredsFile = "creds.json"

// Store is a credential directory tree rooted at a single path.
type Store struct {
	root string
}

// New creates a Store rooted at the given directory. The directory is
// created lazily on the first EnsureDir call.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the root directory of the tree.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the credential directory path for a session.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.root, id)
}

// EnsureDir creates the session's credential directory if it does not
// exist and returns its path.
func (s *Store) EnsureDir(id string) (string, error) {
	dir := s.Dir(id)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

// HasCredentials reports whether the session's directory contains the
// minimal credential artifact.
func (s *Store) HasCredentials(id string) bool {
	_, err := os.Stat(filepath.Join(s.Dir(id), CredsFile))
	return err == nil
}

// Purge removes the session's credential directory and everything in it.
// It is idempotent and never propagates errors: purging runs on failure
// paths where a second fault must not escape, so problems are logged and
// swallowed.
func (s *Store) Purge(id string) {
	dir := s.Dir(id)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		logrus.WithFields(logrus.Fields{
			"function":   "Purge",
			"session_id": id,
			"dir":        dir,
			"error":      err.Error(),
		}).Error("Failed to purge credential directory")
		return
	}
	logrus.WithFields(logrus.Fields{
		"function":   "Purge",
		"session_id": id,
		"dir":        dir,
	}).Info("Credential directory purged")
}

// Scan lists the session IDs that have a credential directory. A missing
// root directory is not an error; it simply yields no candidates.
func (s *Store) Scan() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	return ids, nil
}

// IsCorruptionError reports whether an initialization error indicates
// unreadable or undecryptable credential material, in which case the
// session's directory should be purged so a later pairing starts clean.
func IsCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "decryption") || strings.Contains(msg, "invalid")
}
