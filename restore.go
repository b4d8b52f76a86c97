package chatgate

import (
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate/credstore"
	"github.com/opd-ai/chatgate/observability"
)

// Restore reconciles the on-disk credential tree with the in-memory
// registry at process start. Every credential directory that carries the
// minimal artifact and is not yet registered gets a session constructed
// and initialized. Failures are isolated per session: a directory whose
// initialization error indicates credential corruption is purged, and the
// scan continues with the next candidate. The advisory index is persisted
// once after the scan.
func (g *Gateway) Restore() error {
	ids, err := g.creds.Scan()
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"function":   "Restore",
		"candidates": len(ids),
		"root":       g.creds.Root(),
	}).Info("Restoring sessions from credential store")

	restored := 0
	for _, id := range ids {
		if _, ok := g.registry.Get(id); ok {
			continue
		}
		if !g.creds.HasCredentials(id) {
			logrus.WithFields(logrus.Fields{
				"function":   "Restore",
				"session_id": id,
			}).Debug("Skipping directory without credential artifact")
			continue
		}

		s := newSession(g, id)
		if err := s.Initialize(); err != nil {
			logrus.WithFields(logrus.Fields{
				"function":   "Restore",
				"session_id": id,
				"error":      err.Error(),
			}).Error("Failed to restore session")
			if credstore.IsCorruptionError(err) {
				g.creds.Purge(id)
			}
			continue
		}
		if err := g.register(id, s); err != nil {
			continue
		}
		restored++
		logrus.WithFields(logrus.Fields{
			"function":   "Restore",
			"session_id": id,
		}).Info("Session restored")
	}

	g.registry.PersistIndex()
	observability.SetActiveSessions(g.registry.Size())

	logrus.WithFields(logrus.Fields{
		"function": "Restore",
		"restored": restored,
	}).Info("Session restore complete")
	return nil
}
