// Package admin exposes the back-office inbox surface: live websocket feeds
// for the session list and the selected conversation, admin replies, and
// session deletion. The surrounding CRUD admin UI consumes these endpoints;
// everything else about that UI lives outside this subsystem.
package admin

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tokomaju/livechat/internal/client"
	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/pkg/utils"
)

// Handler serves the admin inbox endpoints.
type Handler struct {
	registry *chatservice.Registry
	messages *chatservice.Log
	inbox    *client.Inbox
	upgrader websocket.Upgrader
	log      *logging.Logger
}

// New creates the admin inbox handler.
func New(registry *chatservice.Registry, messages *chatservice.Log, inbox *client.Inbox, logger *logging.Logger) *Handler {
	return &Handler{
		registry: registry,
		messages: messages,
		inbox:    inbox,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.Sub("handler.admin"),
	}
}

// RegisterRoutes mounts the inbox endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions/{sessionID}/messages", h.handleReply)
	r.Delete("/sessions/{sessionID}", h.handleDeleteSession)
	r.Get("/ws/sessions", h.handleSessionsFeed)
	r.Get("/ws/sessions/{sessionID}/messages", h.handleMessagesFeed)
}

// handleReply appends an admin message. Replying to a closed session
// reopens it; replying to a deleted one fails, it is never recreated.
func (h *Handler) handleReply(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.inbox.Reply(r.Context(), sessionID, payload.Content); err != nil {
		switch {
		case errors.Is(err, client.ErrEmptyMessage):
			utils.RespondError(w, http.StatusBadRequest, "message is empty")
		case errors.Is(err, chatservice.ErrSessionNotFound):
			utils.RespondError(w, http.StatusNotFound, "session not found")
		default:
			h.log.Error().Err(err).Str("session", sessionID).Msg("admin reply failed")
			utils.RespondError(w, http.StatusInternalServerError, "could not send reply")
		}
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// handleDeleteSession runs the cascading deletion protocol. The body keeps
// the legacy {success, message} shape the admin UI renders; the boolean is
// what callers branch on.
func (h *Handler) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	result := h.inbox.Delete(r.Context(), sessionID)
	status := http.StatusOK
	if !result.OK {
		status = http.StatusInternalServerError
	}
	utils.RespondJSON(w, status, map[string]any{
		"success": result.OK,
		"message": result.Reason,
	})
}

type sessionsFrame struct {
	Type     string         `json:"type"`
	Sessions []chat.Session `json:"sessions"`
}

type messagesFrame struct {
	Type      string         `json:"type"`
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

// handleSessionsFeed streams inbox-ordered session list snapshots over a
// websocket until the admin tab disconnects.
func (h *Handler) handleSessionsFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("sessions feed upgrade failed")
		return
	}
	defer conn.Close()

	snapshots := make(chan []chat.Session, 1)
	unsub, err := h.inbox.SubscribeSessions(func(sessions []chat.Session) {
		pushLatest(snapshots, sessions)
	})
	if err != nil {
		h.log.Error().Err(err).Msg("sessions feed subscription rejected")
		_ = conn.WriteJSON(map[string]string{"type": "error", "error": "subscription rejected"})
		return
	}
	defer unsub()

	done := watchClose(conn)
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case sessions := <-snapshots:
			if err := conn.WriteJSON(sessionsFrame{Type: "sessions", Sessions: sessions}); err != nil {
				return
			}
		}
	}
}

// handleMessagesFeed streams live transcript snapshots for one session.
// Each selected conversation is its own connection; the admin UI drops the
// old connection when switching, which releases the old listener.
func (h *Handler) handleMessagesFeed(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("messages feed upgrade failed")
		return
	}
	defer conn.Close()

	snapshots := make(chan []chat.Message, 1)
	unsub, err := h.messages.Subscribe(sessionID, func(messages []chat.Message) {
		pushLatest(snapshots, messages)
	})
	if err != nil {
		h.log.Error().Err(err).Str("session", sessionID).Msg("messages feed subscription rejected")
		_ = conn.WriteJSON(map[string]string{"type": "error", "error": "subscription rejected"})
		return
	}
	defer unsub()

	done := watchClose(conn)
	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case messages := <-snapshots:
			if err := conn.WriteJSON(messagesFrame{Type: "messages", SessionID: sessionID, Messages: messages}); err != nil {
				return
			}
		}
	}
}

// watchClose drains inbound frames so the write loop learns when the peer
// goes away.
func watchClose(conn *websocket.Conn) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	return done
}

// pushLatest hands the newest snapshot to the write loop without blocking
// the subscription callback; a slow connection skips intermediate states.
func pushLatest[T any](ch chan []T, latest []T) {
	for {
		select {
		case ch <- latest:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
