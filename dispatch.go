package chatgate

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/chatgate/address"
	"github.com/opd-ai/chatgate/observability"
	"github.com/opd-ai/chatgate/provider"
)

// SendResult reports an accepted outbound message.
type SendResult struct {
	MessageID string            `json:"messageId"`
	To        string            `json:"to"`
	MediaKind address.MediaKind `json:"mediaType,omitempty"`
}

// SendText delivers a text message through the identified session. The
// recipient is normalized into the provider's canonical address form.
// Fails with ErrSessionNotFound for an unknown session and
// ErrNotConnected unless the session is in the connected phase.
func (g *Gateway) SendText(ctx context.Context, id, to, text string) (*SendResult, error) {
	if g.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	s, ok := g.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	jid := address.Normalize(to, g.settings.CountryPrefix, g.settings.JIDDomain)
	ctx, cancel := context.WithTimeout(ctx, g.settings.QueryTimeout)
	defer cancel()

	receipt, err := s.sendText(ctx, jid, text)
	if err != nil {
		return nil, err
	}

	observability.RecordMessageSent("text")
	logrus.WithFields(logrus.Fields{
		"function":   "SendText",
		"session_id": id,
		"to":         jid,
		"message_id": receipt.MessageID,
	}).Info("Message sent")

	return &SendResult{MessageID: receipt.MessageID, To: jid}, nil
}

// SendMedia delivers a media payload referenced by local path through the
// identified session. The media kind is inferred from the file extension,
// defaulting to document.
func (g *Gateway) SendMedia(ctx context.Context, id, to, path, caption string) (*SendResult, error) {
	if g.shuttingDown.Load() {
		return nil, ErrShuttingDown
	}
	s, ok := g.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}

	jid := address.Normalize(to, g.settings.CountryPrefix, g.settings.JIDDomain)
	kind := address.KindForPath(path)
	ctx, cancel := context.WithTimeout(ctx, g.settings.QueryTimeout)
	defer cancel()

	receipt, err := s.sendMedia(ctx, jid, provider.Media{
		Path:    path,
		Kind:    string(kind),
		Caption: caption,
	})
	if err != nil {
		return nil, err
	}

	observability.RecordMessageSent(string(kind))
	logrus.WithFields(logrus.Fields{
		"function":   "SendMedia",
		"session_id": id,
		"to":         jid,
		"media_kind": string(kind),
		"message_id": receipt.MessageID,
	}).Info("Media sent")

	return &SendResult{MessageID: receipt.MessageID, To: jid, MediaKind: kind}, nil
}
