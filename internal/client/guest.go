// Package client holds the two chat roles: the guest widget client and the
// admin inbox client. Both are thin orchestration over the chat services;
// every piece of cross-role coordination goes through the shared store.
package client

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/internal/store"
)

const (
	keySessionID    = "chat.sessionId"
	keyGuestName    = "chat.guestName"
	keyGuestCompany = "chat.guestCompany"
)

var (
	ErrNotStarted   = errors.New("chat session not started")
	ErrEmptyMessage = errors.New("message is empty")
)

// Guest is the widget-side chat client. It persists its session identity in
// the local store so a page reload resumes the same open session instead of
// starting over.
type Guest struct {
	registry *chatservice.Registry
	messages *chatservice.Log
	local    LocalStore
	log      *logging.Logger

	sessionID string
}

// NewGuest wires a guest client against the shared services.
func NewGuest(registry *chatservice.Registry, messages *chatservice.Log, local LocalStore, logger *logging.Logger) *Guest {
	return &Guest{
		registry: registry,
		messages: messages,
		local:    local,
		log:      logger.Sub("client.guest"),
	}
}

// Start attaches to the persisted session when it is still open, and starts
// a fresh one otherwise. Closed sessions are never resumed: a guest who
// ended the chat (or whose session the admin removed) gets a brand-new
// session with a brand-new id. Returns the session and whether it was
// resumed.
func (g *Guest) Start(ctx context.Context, guestName, guestCompany string) (chat.Session, bool, error) {
	if savedID, ok := g.local.Get(keySessionID); ok && savedID != "" {
		session, err := g.registry.Get(ctx, savedID)
		switch {
		case err == nil && session.Status == chat.StatusOpen:
			g.sessionID = session.ID
			return session, true, nil
		case err == nil || errors.Is(err, chatservice.ErrSessionNotFound):
			// Closed or gone: drop the stale identity and fall through
			// to a fresh session.
			g.local.Delete(keySessionID)
		default:
			return chat.Session{}, false, err
		}
	}

	name := GuestDisplayName(guestName, guestCompany)
	id := uuid.NewString()
	if err := g.registry.Create(ctx, id, name); err != nil {
		// Non-retryable in the interactive flow: the widget shows
		// "could not start chat".
		return chat.Session{}, false, err
	}

	g.local.Set(keySessionID, id)
	g.local.Set(keyGuestName, strings.TrimSpace(guestName))
	g.local.Set(keyGuestCompany, strings.TrimSpace(guestCompany))
	g.sessionID = id

	session, err := g.registry.Get(ctx, id)
	if err != nil {
		return chat.Session{}, false, err
	}
	return session, false, nil
}

// Send appends a guest message and refreshes the session summary. The two
// writes are separate on purpose; between them the message exists while the
// inbox preview still shows the previous one. An append failure is surfaced
// so the widget can warn the guest rather than drop the message silently —
// a retried send may duplicate, which beats losing it.
func (g *Guest) Send(ctx context.Context, content string) error {
	if g.sessionID == "" {
		return ErrNotStarted
	}
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if err := g.messages.Append(ctx, g.sessionID, chat.SenderGuest, trimmed); err != nil {
		return err
	}
	if err := g.registry.Touch(ctx, g.sessionID, chatservice.TouchOptions{LastMessage: trimmed}); err != nil {
		return err
	}
	return nil
}

// End closes the session and forgets the persisted identity, so the next
// Start builds a fresh session context. Guests cannot reopen what they
// closed; only an admin reply can.
func (g *Guest) End(ctx context.Context) error {
	if g.sessionID == "" {
		return ErrNotStarted
	}
	if err := g.registry.Close(ctx, g.sessionID); err != nil {
		return err
	}
	g.local.Delete(keySessionID)
	g.sessionID = ""
	return nil
}

// SubscribeMessages opens the live transcript feed for the widget. The
// caller owns the returned handle and must release it on teardown.
func (g *Guest) SubscribeMessages(fn func([]chat.Message)) (store.Unsubscribe, error) {
	if g.sessionID == "" {
		return nil, ErrNotStarted
	}
	return g.messages.Subscribe(g.sessionID, fn)
}

// SessionID is the attached session id, empty before Start.
func (g *Guest) SessionID() string { return g.sessionID }

// GuestDisplayName joins name and company the way the widget renders it:
// "Budi" at "PT Maju" becomes "Budi dari PT Maju".
func GuestDisplayName(guestName, guestCompany string) string {
	name := strings.TrimSpace(guestName)
	company := strings.TrimSpace(guestCompany)
	if name == "" {
		return ""
	}
	if company == "" {
		return name
	}
	return name + " dari " + company
}
