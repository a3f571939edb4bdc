package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/chaos-io/cutout/config"
	"github.com/chaos-io/cutout/remover"
	"github.com/chaos-io/cutout/remover/rembg"
	"github.com/chaos-io/cutout/server"
)

const shutdownTimeout = 5 * time.Second

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
	gin.SetMode(gin.ReleaseMode)

	if err := os.MkdirAll(cfg.ResultDir, os.ModePerm); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ResultDir).Msg("Failed to create result directory")
	}

	r, err := rembg.New(cfg.RemBG)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create remover")
	}

	s := server.New(remover.NewBackgroundRemover(
		remover.WithRemover(r),
		remover.WithFeather(cfg.Feather),
		remover.WithTrim(cfg.Trim),
	), cfg.ResultDir)

	if err := s.StartCleanup(cfg.CleanupSpec, cfg.ResultTTL); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cleanup")
	}
	defer s.Stop()

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: s.Handler(),
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Str("backend", cfg.RemBG.Backend).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	log.Info().Msg("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown server")
		return
	}

	log.Info().Msg("Server stopped")
}
