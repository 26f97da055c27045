// Package chat implements the live-support chat core over the realtime
// store: the session registry, the per-session message log and the cascading
// session deleter.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	"github.com/tokomaju/livechat/internal/store"
)

// SessionCollection is the registry's collection path in the store.
const SessionCollection = "chatSessions"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionID       = errors.New("session id is required")
)

// SessionPath returns the document path for a session.
func SessionPath(id string) string { return SessionCollection + "/" + id }

// MessagesCollection returns the message-log collection path of a session.
// The log lives under its session and has no identity of its own.
func MessagesCollection(sessionID string) string { return SessionPath(sessionID) + "/messages" }

// Registry manages the session documents backing the admin inbox list.
type Registry struct {
	store store.Store
	log   *logging.Logger
}

// NewRegistry wires the registry to the shared store instance.
func NewRegistry(st store.Store, logger *logging.Logger) *Registry {
	return &Registry{store: st, log: logger.Sub("chat.registry")}
}

// Create writes a fresh open session. The id is generated by the guest
// client, not the store; a store failure here is surfaced as-is and the
// interactive flow treats it as non-retryable ("could not start chat").
func (r *Registry) Create(ctx context.Context, id, guestName string) error {
	if id == "" {
		return ErrSessionID
	}
	fields := store.Fields{
		"guestName":   guestName,
		"status":      string(chat.StatusOpen),
		"lastMessage": "",
		"createdAt":   r.store.ServerTimestamp(),
		"updatedAt":   r.store.ServerTimestamp(),
	}
	if err := r.store.Put(ctx, SessionPath(id), fields); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	r.log.Info().Str("session", id).Str("guest", guestName).Msg("session created")
	return nil
}

// Get reads one session.
func (r *Registry) Get(ctx context.Context, id string) (chat.Session, error) {
	if id == "" {
		return chat.Session{}, ErrSessionID
	}
	doc, err := r.store.Get(ctx, SessionPath(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return chat.Session{}, ErrSessionNotFound
		}
		return chat.Session{}, fmt.Errorf("get session: %w", err)
	}
	return sessionFromDoc(doc), nil
}

// TouchOptions carry the summary refresh applied with every append.
type TouchOptions struct {
	LastMessage string
	// StatusOverride forces the status as part of the same write. The admin
	// reply path uses it to reopen a closed session.
	StatusOverride *chat.Status
}

// Touch bumps updatedAt and the lastMessage preview, optionally forcing the
// status. Fields are overwritten wholesale; last write wins.
func (r *Registry) Touch(ctx context.Context, id string, opts TouchOptions) error {
	fields := store.Fields{
		"lastMessage": opts.LastMessage,
		"updatedAt":   r.store.ServerTimestamp(),
	}
	if opts.StatusOverride != nil {
		fields["status"] = string(*opts.StatusOverride)
	}
	if err := r.store.Update(ctx, SessionPath(id), fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Close marks a session closed and bumps updatedAt. Closing an already
// closed session is a no-op that still refreshes the timestamp.
func (r *Registry) Close(ctx context.Context, id string) error {
	fields := store.Fields{
		"status":    string(chat.StatusClosed),
		"updatedAt": r.store.ServerTimestamp(),
	}
	if err := r.store.Update(ctx, SessionPath(id), fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("close session: %w", err)
	}
	r.log.Info().Str("session", id).Msg("session closed")
	return nil
}

// Subscribe opens a live query over every session, newest activity first.
// That is the store's native order; the inbox's open-before-closed sort is a
// display concern layered on top by the subscriber, not a store guarantee.
func (r *Registry) Subscribe(fn func([]chat.Session)) (store.Unsubscribe, error) {
	unsub, err := r.store.Subscribe(SessionCollection, store.QueryOptions{
		OrderBy: "updatedAt",
		Desc:    true,
	}, func(docs []store.Document) {
		sessions := make([]chat.Session, 0, len(docs))
		for _, doc := range docs {
			sessions = append(sessions, sessionFromDoc(doc))
		}
		fn(sessions)
	})
	if err != nil {
		// Setup rejection is fatal for the inbox; it must never go
		// silently stale.
		r.log.Error().Err(err).Msg("session subscription rejected")
		return nil, err
	}
	return unsub, nil
}

func sessionFromDoc(doc store.Document) chat.Session {
	return chat.Session{
		ID:          doc.ID,
		GuestName:   stringField(doc.Fields, "guestName"),
		Status:      chat.Status(stringField(doc.Fields, "status")),
		LastMessage: stringField(doc.Fields, "lastMessage"),
		CreatedAt:   timeField(doc.Fields, "createdAt"),
		UpdatedAt:   timeField(doc.Fields, "updatedAt"),
	}
}

func stringField(fields store.Fields, key string) string {
	s, _ := fields[key].(string)
	return s
}

func timeField(fields store.Fields, key string) time.Time {
	t, _ := fields[key].(time.Time)
	return t
}
