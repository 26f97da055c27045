package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tokomaju/livechat/internal/client"
	adminHandler "github.com/tokomaju/livechat/internal/handler/admin"
	chatHandler "github.com/tokomaju/livechat/internal/handler/chat"
	"github.com/tokomaju/livechat/internal/logging"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
)

// NewRouter wires HTTP routes to the chat core. The guest widget lives
// under /api/chat, the back-office inbox under /api/admin.
func NewRouter(registry *chatservice.Registry, messages *chatservice.Log, inbox *client.Inbox, logger *logging.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CORS)

	guest := chatHandler.New(registry, messages, logger)
	admin := adminHandler.New(registry, messages, inbox, logger)

	r.Route("/api", func(api chi.Router) {
		api.Route("/chat", func(cr chi.Router) {
			guest.RegisterRoutes(cr)
		})
		api.Route("/admin", func(ar chi.Router) {
			admin.RegisterRoutes(ar)
		})
	})

	return r
}
