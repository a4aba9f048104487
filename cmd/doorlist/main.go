// cmd/doorlist is the application entry point.
// It wires together all layers and starts the HTTP server.
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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/doorlist/doorlist/internal/config"
	"github.com/doorlist/doorlist/internal/database"
	"github.com/doorlist/doorlist/internal/handler"
	"github.com/doorlist/doorlist/internal/logger"
	"github.com/doorlist/doorlist/internal/repository"
	"github.com/doorlist/doorlist/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	defer func() { _ = zl.Sync() }()

	// ── 1. Storage ───────────────────────────────────────────────────────
	var (
		events    repository.EventRepository
		attendees repository.AttendeeRepository
		waitlist  repository.WaitlistRepository
	)
	switch cfg.Database.Driver {
	case "memory":
		store := repository.NewMemoryStore()
		events, attendees, waitlist = store.Events(), store.Attendees(), store.Waitlist()
		zl.Info("using in-memory store; data is lost on restart")
	default:
		pool, err := database.NewPool(ctx, cfg.Database)
		if err != nil {
			zl.Fatal("database connect", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			zl.Fatal("database migrate", zap.Error(err))
		}
		events = repository.NewPostgresEventRepository(pool)
		attendees = repository.NewPostgresAttendeeRepository(pool)
		waitlist = repository.NewPostgresWaitlistRepository(pool)
		zl.Info("connected to postgres", zap.String("db", cfg.Database.DBName))
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	eventSvc := service.NewEventService(events)
	regSvc := service.NewRegistrationService(events, attendees, waitlist, zl)
	checkinSvc := service.NewCheckinService(attendees, zl)
	dashSvc := service.NewDashboardService(events, attendees, waitlist)
	h := handler.New(eventSvc, regSvc, checkinSvc, dashSvc, zl)

	// ── 3. Build the router ──────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.Logger(zl))
	r.Use(handler.CORS)
	r.Use(handler.Auth(cfg.Auth.JWTSecret))

	r.Get("/health", handler.HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Post("/", h.CreateEvent)
		r.Get("/", h.ListEvents)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", h.GetEvent)
			r.Post("/publish", h.PublishEvent)
			r.Post("/cancel", h.CancelEvent)
			r.Post("/register", h.Register)
			r.Post("/waitlist", h.JoinWaitlist)
			r.Get("/waitlist", h.Waitlist)
			r.Get("/dashboard", h.Dashboard)
			r.Get("/export.csv", h.ExportCSV)
		})
	})
	r.Route("/attendees/{id}", func(r chi.Router) {
		r.Post("/cancel", h.CancelRSVP)
		r.Get("/qr.png", h.AttendeeQR)
	})
	r.Route("/checkin", func(r chi.Router) {
		r.Post("/qr", h.CheckInQR)
		r.Post("/{id}", h.CheckIn)
	})

	// ── 4. Start server with graceful shutdown ───────────────────────────
	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zl.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Fatal("graceful shutdown failed", zap.Error(err))
	}
	zl.Info("server stopped")
}
