package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/petfolio/petcare-auth/internal/api/handler"
	"github.com/petfolio/petcare-auth/internal/api/middleware"
	"github.com/petfolio/petcare-auth/internal/core/domain"
	"github.com/petfolio/petcare-auth/internal/core/service"
	mongostore "github.com/petfolio/petcare-auth/internal/infrastructure/db/mongo"
	redisstore "github.com/petfolio/petcare-auth/internal/infrastructure/db/redis"
)

// Config carries the tunables the router threads into the auth service.
type Config struct {
	JWTSecret  string
	AccessTTL  time.Duration
	SessionTTL time.Duration
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(db *mongo.Database, rdb *redis.Client, cfg Config, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("petcare_auth"))

	// --- Dependencies ---
	userRepo := mongostore.NewUserRepository(db)
	sessionRepo := mongostore.NewSessionRepository(db)
	retired := redisstore.NewRetiredTokenStore(rdb)
	authService := service.NewAuthService(userRepo, sessionRepo, retired, cfg.JWTSecret, cfg.AccessTTL, cfg.SessionTTL, log)
	authHandler := handler.NewAuthHandler(authService)
	authMiddleware := middleware.Auth(cfg.JWTSecret, userRepo)

	// --- Auth routes ---
	e.POST("/auth/login", authHandler.Login)
	e.POST("/auth/refresh", authHandler.Refresh)
	e.POST("/auth/logout", authHandler.Logout)
	e.POST("/auth/change-password", authHandler.ChangePassword, authMiddleware)
	e.GET("/auth/me", authHandler.Me, authMiddleware)

	// --- Admin routes ---
	e.DELETE("/admin/users/:id/sessions", authHandler.RevokeUserSessions, authMiddleware, middleware.RequireRole(domain.RoleAdmin))

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Metrics ---
	e.GET("/metrics", echoprometheus.NewHandler())

	return e
}
