package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/carebridge/telecare/internal/adapters/auth"
	router "github.com/carebridge/telecare/internal/adapters/http"
	"github.com/carebridge/telecare/internal/adapters/store"
	"github.com/carebridge/telecare/internal/app"
	"github.com/carebridge/telecare/internal/config"
	"github.com/carebridge/telecare/internal/core"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var (
		appointments core.AppointmentStore
		audit        core.AuditLog
		summaries    core.SummarySink
	)
	switch cfg.StoreDriver {
	case "postgres":
		pg, err := store.NewPostgresStore(ctx, cfg.StoreDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to store")
		}
		defer pg.Close()
		appointments, audit, summaries = pg, pg, pg
	default:
		mem := store.NewMemoryStore()
		appointments, audit, summaries = mem, mem, mem
		log.Warn().Msg("using in-memory appointment store; dev mode only")
	}

	registry := app.NewRegistry()
	rooms := app.NewRoomManager()
	sessionsMgr := app.NewSessionManager(cfg.WaitingTimeout, cfg.GraceWindow, appointments, audit, summaries)
	guard := &app.Guard{Appointments: appointments}

	orch := &app.Orchestrator{
		Registry: registry,
		Rooms:    rooms,
		Sessions: sessionsMgr,
		Guard:    guard,
	}
	sessionsMgr.SetEvents(orch)

	resolver := auth.NewJWTResolver(cfg.JWTSecret)

	r := router.SetupRouter(ctx, cfg, orch, resolver)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("telecare signaling server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
