package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tokomaju/livechat/internal/client"
	"github.com/tokomaju/livechat/internal/config"
	"github.com/tokomaju/livechat/internal/handler"
	"github.com/tokomaju/livechat/internal/logging"
	chatservice "github.com/tokomaju/livechat/internal/service/chat"
	"github.com/tokomaju/livechat/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := logging.New(nil, cfg.Log.Level)

	// One store instance per process. It is the only shared mutable state
	// between the guest and admin roles; both get it injected rather than
	// reaching for a hidden global, so tests can swap in their own.
	st := store.NewMemory(store.Options{BatchLimit: cfg.Chat.BatchLimit})

	registry := chatservice.NewRegistry(st, logger)
	messages := chatservice.NewLog(st, logger)
	deleter := chatservice.NewDeleter(st, cfg.Chat.DeletePageSize, logger)

	// The inbox identity comes from the back-office auth layer in the full
	// deployment; the chat server runs with a fixed one.
	inbox := client.NewInbox(registry, messages, deleter, client.StaticIdentity("Admin"), logger)

	router := handler.NewRouter(registry, messages, inbox, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger *logging.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("livechat backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
