package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/lms-be/internal/api"
	"github.com/isdelr/lms-be/internal/auth"
	"github.com/isdelr/lms-be/internal/config"
	"github.com/isdelr/lms-be/internal/logger"
	"github.com/isdelr/lms-be/internal/services"
	"github.com/isdelr/lms-be/internal/storage"
	"github.com/isdelr/lms-be/internal/storage/memory"
	"github.com/isdelr/lms-be/internal/storage/sqlite"
	"github.com/isdelr/lms-be/internal/websocket"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogPretty)

	// Set up storage
	store, err := openStore(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StorageDriver).Msg("Failed to initialize storage")
	}
	defer store.Close()

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up services
	eventService := services.NewEventService(store)
	userService := services.NewUserService(store, eventService)
	courseService := services.NewCourseService(store, eventService)
	enrollmentService := services.NewEnrollmentService(store, eventService, hub)
	analyticsService := services.NewAnalyticsService(store)

	if cfg.AdminEmail != "" {
		if _, err := userService.EnsureAdmin(context.Background(), cfg.AdminEmail, cfg.AdminName, cfg.AdminPassword); err != nil {
			log.Fatal().Err(err).Str("email", cfg.AdminEmail).Msg("Failed to create bootstrap admin")
		}
	}

	// Set up router
	router := api.NewRouter(api.Deps{
		Hub:            hub,
		Users:          userService,
		Courses:        courseService,
		Enrollments:    enrollmentService,
		Analytics:      analyticsService,
		Events:         eventService,
		Tokens:         auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		TokenTTL:       cfg.TokenTTL,
		SecureCookies:  cfg.IsProduction(),
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimit:      cfg.RateLimit,
		RateWindow:     cfg.RateWindow,
	})

	// Set up server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("storage", cfg.StorageDriver).Msg("Server starting")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.StorageDriver == config.DriverMemory {
		return memory.New(), nil
	}
	return sqlite.Open(cfg.DatabasePath)
}
