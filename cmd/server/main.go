package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/escala-game/escala-backend/internal/clock"
	"github.com/escala-game/escala-backend/internal/httpapi"
	"github.com/escala-game/escala-backend/internal/hub"
	"github.com/escala-game/escala-backend/internal/registry"
	"github.com/escala-game/escala-backend/internal/session"
	"github.com/escala-game/escala-backend/internal/store"
	"github.com/escala-game/escala-backend/internal/ws"
)

// departureRouter forwards registry membership transitions into the owning
// game's session actor. The hub is attached after construction because the
// registry has to exist before the hub does.
type departureRouter struct {
	hub *hub.Hub
}

func (d *departureRouter) PlayerDeparted(gameCode, playerID string) {
	if d.hub == nil {
		return
	}
	if sess := d.hub.Get(gameCode); sess != nil {
		sess.Inbox() <- session.PlayerDeparted{PlayerID: playerID}
	}
}

func (d *departureRouter) PlayerReturned(gameCode, playerID string) {
	if d.hub == nil {
		return
	}
	if sess := d.hub.Get(gameCode); sess != nil {
		sess.Inbox() <- session.PlayerReturned{PlayerID: playerID}
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	log, err := newLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	st, err := store.Open(dsn, log)
	if err != nil {
		log.Fatal("opening store failed", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	timers := clock.NewScheduler(log)
	router := &departureRouter{}
	grace := time.Duration(envInt("RECONNECT_GRACE_SECONDS", 30)) * time.Second
	reg := registry.New(grace, router, log)

	h := hub.NewHub(ctx, hub.Deps{
		Store:     st,
		Timers:    timers,
		Broadcast: reg,
		Now:       time.Now,
		Log:       log,
	})
	router.hub = h

	if err := h.Recover(ctx); err != nil {
		log.Error("recovering playing games failed", zap.Error(err))
	}

	api := &httpapi.API{Hub: h, Store: st, Log: log}
	handler := httpapi.SetupRoutes(api, ws.Handler(h, reg, st, log))

	addr := ":" + strconv.Itoa(envInt("PORT", 5000))
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", zap.Error(err))
	}
	timers.CancelAll()
}
