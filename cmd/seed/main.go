// seed provisions the initial admin account. User creation is an
// out-of-band step; the public API never registers accounts.
// Idempotent: exits cleanly if the username already exists.
package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"

	"github.com/petfolio/petcare-auth/internal/core/domain"
	"github.com/petfolio/petcare-auth/internal/infrastructure/config"
	mongostore "github.com/petfolio/petcare-auth/internal/infrastructure/db/mongo"
	"github.com/petfolio/petcare-auth/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		panic(err)
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: true})

	username := envOr("SEED_ADMIN_USERNAME", "admin")
	email := envOr("SEED_ADMIN_EMAIL", "admin@petfolio.local")
	password := os.Getenv("SEED_ADMIN_PASSWORD")
	if len(password) < 8 {
		log.Fatal().Msg("SEED_ADMIN_PASSWORD must be set (minimum 8 characters)")
	}

	client, db, err := mongostore.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	users := mongostore.NewUserRepository(db)
	if err := users.EnsureIndexes(ctx); err != nil {
		log.Fatal().Err(err).Msg("user indexes failed")
	}

	if _, err := users.FindByUsername(ctx, username); err == nil {
		log.Info().Str("username", username).Msg("admin already exists, nothing to do")
		return
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		log.Fatal().Err(err).Msg("seed check failed")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal().Err(err).Msg("hash password failed")
	}

	now := time.Now().UTC()
	created, err := users.Create(ctx, &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     "Administrator",
		Role:         domain.RoleAdmin,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("create admin failed")
	}

	log.Info().Str("user_id", created.ID).Str("username", username).Msg("admin account provisioned")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
