package client

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/internal/store"
)

// AdminPrefix marks admin-authored text in the session's lastMessage
// preview.
const AdminPrefix = "Admin: "

// Identity is the externally supplied current-admin identity. The back
// office auth layer provides it; the chat core only reads a display name.
type Identity interface {
	DisplayName() string
}

// StaticIdentity is a fixed Identity for wiring and tests.
type StaticIdentity string

func (s StaticIdentity) DisplayName() string { return string(s) }

// Inbox is the admin-side chat client: the live session list, one selected
// conversation, replies and session deletion.
type Inbox struct {
	registry *chatservice.Registry
	messages *chatservice.Log
	deleter  *chatservice.Deleter
	identity Identity
	log      *logging.Logger

	mu        sync.Mutex
	selected  string
	unsubMsgs store.Unsubscribe
}

// NewInbox wires an inbox client against the shared services.
func NewInbox(registry *chatservice.Registry, messages *chatservice.Log, deleter *chatservice.Deleter, identity Identity, logger *logging.Logger) *Inbox {
	return &Inbox{
		registry: registry,
		messages: messages,
		deleter:  deleter,
		identity: identity,
		log:      logger.Sub("client.inbox"),
	}
}

// SubscribeSessions feeds the inbox list: every session, open conversations
// first, newest activity first within each group. The caller owns the
// returned handle.
func (a *Inbox) SubscribeSessions(fn func([]chat.Session)) (store.Unsubscribe, error) {
	return a.registry.Subscribe(func(sessions []chat.Session) {
		SortForInbox(sessions)
		fn(sessions)
	})
}

// SortForInbox applies the inbox display order on top of the store's
// updatedAt-descending delivery: open before closed, recency as the
// tie-break inside each status group. The stable sort preserves the store
// order within groups.
func SortForInbox(sessions []chat.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Status == chat.StatusOpen && sessions[j].Status != chat.StatusOpen
	})
}

// Select points the message view at a session, tearing down the previous
// live transcript first so switching conversations never leaks a listener.
func (a *Inbox) Select(sessionID string, fn func([]chat.Message)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.clearLocked()
	if sessionID == "" {
		return nil
	}

	unsub, err := a.messages.Subscribe(sessionID, fn)
	if err != nil {
		return err
	}
	a.selected = sessionID
	a.unsubMsgs = unsub
	return nil
}

// ClearSelection drops the selected session and its live transcript.
func (a *Inbox) ClearSelection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clearLocked()
}

func (a *Inbox) clearLocked() {
	if a.unsubMsgs != nil {
		a.unsubMsgs()
		a.unsubMsgs = nil
	}
	a.selected = ""
}

// Selected is the currently selected session id, empty when none.
func (a *Inbox) Selected() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// Reply appends an admin message. Replying to a closed session reopens it —
// that is the only closed-to-open transition in the lifecycle, and it never
// creates a session: replying into a deleted one fails with
// ErrSessionNotFound instead of resurrecting it.
func (a *Inbox) Reply(ctx context.Context, sessionID, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ErrEmptyMessage
	}
	if _, err := a.registry.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := a.messages.Append(ctx, sessionID, chat.SenderAdmin, trimmed); err != nil {
		return err
	}
	open := chat.StatusOpen
	err := a.registry.Touch(ctx, sessionID, chatservice.TouchOptions{
		LastMessage:    AdminPrefix + trimmed,
		StatusOverride: &open,
	})
	if err != nil {
		// The message is already in the log; only the summary/reopen
		// write failed. Surface it so the inbox can warn and retry.
		return err
	}
	a.log.Debug().Str("session", sessionID).Str("admin", a.identity.DisplayName()).Msg("reply sent")
	return nil
}

// Delete runs the cascading deletion protocol and drops the selection when
// it pointed at the removed session.
func (a *Inbox) Delete(ctx context.Context, sessionID string) chatservice.DeleteResult {
	result := a.deleter.Delete(ctx, sessionID)
	if result.OK && a.Selected() == sessionID {
		a.ClearSelection()
	}
	return result
}
