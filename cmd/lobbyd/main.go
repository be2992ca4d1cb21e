package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/chess-lobby-client/internal/api"
	"github.com/dom/chess-lobby-client/internal/config"
	"github.com/dom/chess-lobby-client/internal/identity"
	"github.com/dom/chess-lobby-client/internal/lobby"
	"github.com/dom/chess-lobby-client/internal/statusapi"
	"github.com/dom/chess-lobby-client/internal/store"
	"github.com/dom/chess-lobby-client/internal/transport"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Resolve the viewer identity from the access token
	ident := identity.NewProvider()
	if err := ident.SetToken(cfg.AccessToken); err != nil {
		log.Fatalf("failed to resolve identity: %v", err)
	}

	// Local outcome archive
	archive, err := store.Open(cfg.ArchivePath)
	if err != nil {
		log.Fatalf("failed to open archive: %v", err)
	}

	// Client core
	actions := api.NewClient(cfg.ServerURL, cfg.AccessToken)
	games := lobby.NewStore()
	notifs := lobby.NewNotifications()
	negotiator := lobby.NewNegotiator(actions, notifs, cfg.RequestWindow)
	socket := transport.NewSocket(cfg.SocketURL, cfg.AccessToken)
	supervisor := lobby.NewSupervisor(games, negotiator, notifs, actions, socket, archive)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := supervisor.Start(ctx, ident.UserID()); err != nil {
		log.Fatalf("failed to start supervisor: %v", err)
	}

	// Local status API for the rendering layer
	router := statusapi.NewRouter(supervisor, games, negotiator, notifs, actions, archive)
	srv := &http.Server{
		Addr:         "127.0.0.1:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Status API listening on port %s for viewer %s", cfg.Port, ident.UserID())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start status API: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")

	supervisor.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("Stopped")
}
