// Package chat exposes the guest widget's HTTP surface: starting or
// resuming a session, sending messages, ending the chat, and reading the
// transcript once or as a live SSE feed. The widget keeps its session id in
// the browser and sends it back for resume; the server holds no guest state.
package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/tokomaju/livechat/internal/client"
	"github.com/tokomaju/livechat/internal/logging"
	"github.com/tokomaju/livechat/internal/model/chat"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/pkg/utils"
)

// Handler serves the guest widget endpoints.
type Handler struct {
	registry *chatservice.Registry
	messages *chatservice.Log
	log      *logging.Logger
}

// New creates the guest chat handler.
func New(registry *chatservice.Registry, messages *chatservice.Log, logger *logging.Logger) *Handler {
	return &Handler{
		registry: registry,
		messages: messages,
		log:      logger.Sub("handler.chat"),
	}
}

// RegisterRoutes mounts the guest endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/sessions", h.handleStartSession)
	r.Post("/sessions/{sessionID}/messages", h.handleSendMessage)
	r.Post("/sessions/{sessionID}/end", h.handleEndSession)
	r.Get("/sessions/{sessionID}/messages", h.handleListMessages)
	r.Get("/sessions/{sessionID}/stream", h.handleStreamMessages)
}

type startSessionResponse struct {
	Session chat.Session `json:"session"`
	Resumed bool         `json:"resumed"`
}

// handleStartSession starts a chat, or resumes one when the widget sends a
// remembered session id that is still open. A closed or deleted session is
// never resumed; the guest gets a fresh session with a fresh id.
func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		SessionID    string `json:"sessionId"`
		GuestName    string `json:"guestName"`
		GuestCompany string `json:"guestCompany"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx := r.Context()
	if payload.SessionID != "" {
		session, err := h.registry.Get(ctx, payload.SessionID)
		switch {
		case err == nil && session.Status == chat.StatusOpen:
			utils.RespondJSON(w, http.StatusOK, startSessionResponse{Session: session, Resumed: true})
			return
		case err != nil && !errors.Is(err, chatservice.ErrSessionNotFound):
			utils.RespondError(w, http.StatusInternalServerError, "could not start chat")
			return
		}
		// Closed or gone: fall through to a fresh session.
	}

	id := uuid.NewString()
	name := client.GuestDisplayName(payload.GuestName, payload.GuestCompany)
	if err := h.registry.Create(ctx, id, name); err != nil {
		h.log.Error().Err(err).Msg("session create failed")
		utils.RespondError(w, http.StatusInternalServerError, "could not start chat")
		return
	}

	session, err := h.registry.Get(ctx, id)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not start chat")
		return
	}
	utils.RespondJSON(w, http.StatusCreated, startSessionResponse{Session: session, Resumed: false})
}

// handleSendMessage appends a guest message and refreshes the session
// summary. The summary write trails the append; a failure here still leaves
// the message delivered, so the widget warns instead of dropping it.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var payload struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	content := strings.TrimSpace(payload.Content)
	if content == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is empty")
		return
	}

	ctx := r.Context()
	if _, err := h.registry.Get(ctx, sessionID); err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "could not send message")
		return
	}

	if err := h.messages.Append(ctx, sessionID, chat.SenderGuest, content); err != nil {
		h.log.Error().Err(err).Str("session", sessionID).Msg("guest append failed")
		utils.RespondError(w, http.StatusInternalServerError, "could not send message")
		return
	}
	if err := h.registry.Touch(ctx, sessionID, chatservice.TouchOptions{LastMessage: content}); err != nil {
		h.log.Warn().Err(err).Str("session", sessionID).Msg("summary refresh failed after append")
		utils.RespondError(w, http.StatusInternalServerError, "message sent but summary update failed")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// handleEndSession closes the session. Only guests close; the admin has no
// close action.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := h.registry.Close(r.Context(), sessionID); err != nil {
		if errors.Is(err, chatservice.ErrSessionNotFound) {
			utils.RespondError(w, http.StatusNotFound, "session not found")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, "could not end chat")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": string(chat.StatusClosed)})
}

// handleListMessages reads the transcript once, oldest first.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	messages, err := h.messages.List(r.Context(), sessionID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not load messages")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

// handleStreamMessages feeds the widget live transcript snapshots over SSE
// until the client goes away.
func (h *Handler) handleStreamMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	snapshots := make(chan []chat.Message, 1)
	unsub, err := h.messages.Subscribe(sessionID, func(messages []chat.Message) {
		pushSnapshot(snapshots, messages)
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "could not open message stream")
		return
	}
	defer unsub()

	utils.SetupSSEHeaders(w)
	utils.SendSSEChunk(w, flusher, map[string]any{"event": "connected", "sessionId": sessionID})

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Str("session", sessionID).Msg("message stream closed")
			return
		case messages := <-snapshots:
			utils.SendSSEChunk(w, flusher, map[string]any{"event": "messages", "messages": messages})
		}
	}
}

// pushSnapshot hands the latest snapshot to the streaming loop without ever
// blocking the subscription callback; a slow stream consumer just skips
// intermediate states.
func pushSnapshot(ch chan []chat.Message, messages []chat.Message) {
	for {
		select {
		case ch <- messages:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
