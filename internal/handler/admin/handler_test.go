package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/tokomaju/livechat/internal/client"
	"github.com/tokomaju/livechat/internal/logging"
	model "github.com/tokomaju/livechat/internal/model/chat"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/internal/store"
)

func setupRouter() (*chi.Mux, *chatservice.Registry, *chatservice.Log) {
	logger := logging.New(nil, "silent")
	st := store.NewMemory(store.Options{})
	registry := chatservice.NewRegistry(st, logger)
	messages := chatservice.NewLog(st, logger)
	deleter := chatservice.NewDeleter(st, 10, logger)
	inbox := client.NewInbox(registry, messages, deleter, client.StaticIdentity("Admin"), logger)
	handler := New(registry, messages, inbox, logger)

	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r, registry, messages
}

func postJSON(r http.Handler, path string, body any) *httptest.ResponseRecorder {
	payload, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestReply(t *testing.T) {
	r, registry, messages := setupRouter()
	ctx := context.Background()
	if err := registry.Create(ctx, "s1", "Budi"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	if err := registry.Close(ctx, "s1"); err != nil {
		t.Fatalf("close session: %v", err)
	}

	resp := postJSON(r, "/sessions/s1/messages", map[string]string{"content": "Masih ada?"})

	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.Code)
	}

	session, err := registry.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.Status != model.StatusOpen {
		t.Fatalf("reply must reopen a closed session, got %s", session.Status)
	}
	if session.LastMessage != "Admin: Masih ada?" {
		t.Fatalf("unexpected preview: %q", session.LastMessage)
	}

	list, err := messages.List(ctx, "s1")
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(list) != 1 || list[0].Sender != model.SenderAdmin {
		t.Fatalf("unexpected log state: %+v", list)
	}
}

func TestReplyMissingSession(t *testing.T) {
	r, _, _ := setupRouter()

	resp := postJSON(r, "/sessions/missing/messages", map[string]string{"content": "Halo"})

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestReplyEmptyContent(t *testing.T) {
	r, registry, _ := setupRouter()
	if err := registry.Create(context.Background(), "s1", "Budi"); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	resp := postJSON(r, "/sessions/s1/messages", map[string]string{"content": " "})

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestDeleteSession(t *testing.T) {
	r, registry, messages := setupRouter()
	ctx := context.Background()
	if err := registry.Create(ctx, "s1", "Budi"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	for i := 0; i < 25; i++ {
		if err := messages.Append(ctx, "s1", model.SenderGuest, "m"); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var body struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Fatalf("expected success, got %q", body.Message)
	}

	if _, err := registry.Get(ctx, "s1"); err == nil {
		t.Fatal("session must be gone after deletion")
	}

	// Second delete reports the idempotent already-gone success.
	req = httptest.NewRequest(http.MethodDelete, "/sessions/s1", nil)
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat delete, got %d", resp.Code)
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !body.Success {
		t.Fatalf("repeat delete must succeed, got %q", body.Message)
	}
}

func TestSessionsFeed(t *testing.T) {
	r, registry, _ := setupRouter()
	if err := registry.Create(context.Background(), "s1", "Budi"); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var frame sessionsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Type != "sessions" || len(frame.Sessions) != 1 || frame.Sessions[0].ID != "s1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}

	// A new session shows up on the same connection.
	if err := registry.Create(context.Background(), "s2", "Ani"); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	for {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if len(frame.Sessions) == 2 {
			break
		}
	}
}

func TestMessagesFeed(t *testing.T) {
	r, registry, messages := setupRouter()
	ctx := context.Background()
	if err := registry.Create(ctx, "s1", "Budi"); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	srv := httptest.NewServer(r)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sessions/s1/messages"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	if err := messages.Append(ctx, "s1", model.SenderGuest, "Halo"); err != nil {
		t.Fatalf("append: %v", err)
	}

	var frame messagesFrame
	for {
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame: %v", err)
		}
		if len(frame.Messages) == 1 {
			break
		}
	}
	if frame.Messages[0].Content != "Halo" || frame.SessionID != "s1" {
		t.Fatalf("unexpected frame: %+v", frame)
	}
}
