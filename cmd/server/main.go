package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/petfolio/petcare-auth/internal/api"
	"github.com/petfolio/petcare-auth/internal/infrastructure/config"
	mongostore "github.com/petfolio/petcare-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/petfolio/petcare-auth/internal/infrastructure/db/redis"
	"github.com/petfolio/petcare-auth/internal/infrastructure/sweeper"
	"github.com/petfolio/petcare-auth/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	rdb, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() {
		_ = rdb.Close()
	}()

	userRepo := mongostore.NewUserRepository(db)
	sessionRepo := mongostore.NewSessionRepository(db)
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("user indexes failed")
	}
	if err := sessionRepo.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("session indexes failed")
	}

	sweeper.New(sessionRepo, cfg.SweepInterval, log).Start(ctx)

	e := api.NewRouter(db, rdb, api.Config{
		JWTSecret:  cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL,
		SessionTTL: cfg.SessionTTL,
	}, log)

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
	log.Info().Msg("server stopped")
}
