package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	"github.com/tokomaju/livechat/internal/store"
)

var ErrInvalidSender = errors.New("sender must be guest or admin")

// Log is the append-only message log, scoped per session under the session
// document.
type Log struct {
	store store.Store
	log   *logging.Logger
}

// NewLog wires the message log to the shared store instance.
func NewLog(st store.Store, logger *logging.Logger) *Log {
	return &Log{store: st, log: logger.Sub("chat.log")}
}

// Append writes one message with a store-assigned createdAt. The log takes
// content as given; trimming and the non-empty check belong to the caller.
// The caller is also responsible for the matching Registry.Touch — the two
// writes are deliberately decoupled so each can be retried and observed on
// its own, at the cost of a window where the message exists but the session
// summary does not reflect it yet.
//
// Appends do not check that the session still exists. A message written
// while its session is being deleted may survive as an orphan; see
// Deleter.Delete.
func (l *Log) Append(ctx context.Context, sessionID string, sender chat.Sender, content string) error {
	if sessionID == "" {
		return ErrSessionID
	}
	if sender != chat.SenderGuest && sender != chat.SenderAdmin {
		return ErrInvalidSender
	}
	fields := store.Fields{
		"sender":    string(sender),
		"content":   content,
		"createdAt": l.store.ServerTimestamp(),
	}
	path := MessagesCollection(sessionID) + "/" + uuid.NewString()
	if err := l.store.Put(ctx, path, fields); err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// List reads the full log once, oldest first.
func (l *Log) List(ctx context.Context, sessionID string) ([]chat.Message, error) {
	docs, err := l.store.Query(ctx, MessagesCollection(sessionID), messageOrder())
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messagesFromDocs(sessionID, docs), nil
}

// Subscribe opens a live query over the log, oldest first and unbounded.
// No pagination: an operational chat session is short-lived and small, and
// the unbounded read is an accepted scaling limit.
func (l *Log) Subscribe(sessionID string, fn func([]chat.Message)) (store.Unsubscribe, error) {
	unsub, err := l.store.Subscribe(MessagesCollection(sessionID), messageOrder(), func(docs []store.Document) {
		fn(messagesFromDocs(sessionID, docs))
	})
	if err != nil {
		l.log.Error().Err(err).Str("session", sessionID).Msg("message subscription rejected")
		return nil, err
	}
	return unsub, nil
}

// messageOrder is createdAt ascending: the order every subscriber renders.
// Two messages in the same clock tick fall back to the store's stable
// commit-order tie-break; the log does not sequence independently.
func messageOrder() store.QueryOptions {
	return store.QueryOptions{OrderBy: "createdAt"}
}

func messagesFromDocs(sessionID string, docs []store.Document) []chat.Message {
	messages := make([]chat.Message, 0, len(docs))
	for _, doc := range docs {
		messages = append(messages, chat.Message{
			ID:        doc.ID,
			SessionID: sessionID,
			Sender:    chat.Sender(stringField(doc.Fields, "sender")),
			Content:   stringField(doc.Fields, "content"),
			CreatedAt: timeField(doc.Fields, "createdAt"),
		})
	}
	return messages
}
