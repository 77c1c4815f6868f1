package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/gradebook-io/gradebook/internal/auth"
	"github.com/gradebook-io/gradebook/internal/config"
	"github.com/gradebook-io/gradebook/internal/grades"
	"github.com/gradebook-io/gradebook/internal/logger"
	"github.com/gradebook-io/gradebook/internal/session"
	"github.com/gradebook-io/gradebook/internal/web"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, cfg.LogFormat)
	log := logger.Get()

	ctx := context.Background()

	source, err := grades.NewSheetSource(ctx, cfg.SpreadsheetID, cfg.ServiceAccount)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to initialise spreadsheet source")
	}

	var store session.Store
	switch cfg.SessionBackend {
	case "redis":
		store = session.NewRedisStore(cfg.RedisAddr, cfg.SessionTTL)
	default:
		store = session.NewMemoryStore()
	}

	server, err := web.NewServer(
		auth.NewWorkflow(cfg.OAuth),
		grades.NewService(source),
		store,
		session.NewCookieCodec([]byte(cfg.SessionSecret), cfg.SessionTTL))
	if err != nil {
		log.Fatal().Err(err).Msg("unable to initialise web server")
	}

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("gradebook dashboard listening")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	log.Info().Msg("shutting down")

	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdown); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
