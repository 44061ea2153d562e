// Package main is the entry point for the teach-session API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/config"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/events"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/handler"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/middleware"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/platform"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/session"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/internal/store"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/logger"
	"github.com/commontechyaaralabs/TheNeural-Playground-sub001/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting teach-session API server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "teach-session", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Change-event bus, mirrored to NATS when enabled.
	bus := events.NewBus()
	var natsPublisher *events.NATSPublisher
	if cfg.NATSEnabled {
		natsPublisher, err = events.ConnectNATS(ctx, events.NATSConfig{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer natsPublisher.Close()
		bus.Subscribe(natsPublisher.Handler())
	}

	// Upstream platform client and the session core.
	api := platform.NewClient(cfg.PlatformBaseURL, cfg.PlatformTimeout, log)
	cache := store.New()
	manager := session.NewManager(api, cache, log)
	tracker := session.NewTracker(api, cache, bus, log)
	controller := session.NewController(manager, tracker, cache, api, bus, log)

	healthHandler := handler.NewHealthHandler(natsPublisher)
	chatHandler := handler.NewChatHandler(manager, log)
	turnHandler := handler.NewTurnHandler(controller, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		r.Route("/agents/{agentID}", func(r chi.Router) {
			r.Get("/chats", chatHandler.List)
			r.Post("/chats", chatHandler.Restart)
			r.Post("/turns", turnHandler.Send)
		})

		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/", chatHandler.Load)
			r.Post("/archive", chatHandler.Archive)
			r.Delete("/", chatHandler.Delete)
		})

		r.Route("/changes/{changeID}", func(r chi.Router) {
			r.Post("/approve", turnHandler.Approve)
			r.Post("/reject", turnHandler.Reject)
		})

		r.Route("/messages/{messageID}", func(r chi.Router) {
			r.Put("/", turnHandler.Edit)
			r.Delete("/", turnHandler.Delete)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      r,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
