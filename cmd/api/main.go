// cmd/api/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/db"
	"mirror/internal/db/migrations"
	"mirror/internal/logging"
	"mirror/internal/ratelimit"
	"mirror/internal/routes"
	"mirror/internal/services"
)

// @title           Mirror of Dreams API
// @version         1.0
// @description     Accounts, email verification, password reset and registrations.
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.MustLoad()
	log := logging.Must(cfg.LogLevel, cfg.Environment)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.EnsureDatabase(ctx, cfg.DatabaseURL, log); err != nil {
		log.Fatal("failed to ensure database exists", zap.Error(err))
	}

	database, err := db.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := migrations.RunMigrations(ctx, database.DB, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	limiter := newLimiter(ctx, cfg, log)

	mailer := &services.SMTPSender{
		Host:   cfg.SMTPHost,
		Port:   cfg.SMTPPort,
		User:   cfg.SMTPUser,
		Pass:   cfg.SMTPPassword,
		From:   cfg.SMTPFrom,
		UseTLS: cfg.SMTPUseTLS,
	}

	router := routes.SetupRoutes(routes.Deps{
		DB:      database.DB,
		Cfg:     cfg,
		Log:     log,
		Limiter: limiter,
		Mailer:  mailer,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port), zap.String("env", cfg.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("server forced to shutdown", zap.Error(err))
	}

	log.Info("server exiting")
}

// newLimiter prefers Redis so limits hold across instances. Without
// REDIS_URL, or when Redis is unreachable at boot, it falls back to the
// in-process limiter and sweeps it once per window.
func newLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) ratelimit.Limiter {
	if cfg.RedisURL != "" {
		client, err := ratelimit.NewRedisClient(ctx, cfg.RedisURL)
		if err == nil {
			log.Info("using redis rate limiter")
			return ratelimit.NewRedisLimiter(client, "")
		}
		log.Warn("redis unavailable, using in-memory rate limiter", zap.Error(err))
	}

	mem := ratelimit.NewMemoryLimiter()
	go func() {
		t := time.NewTicker(cfg.RateLimitWindow)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if n := mem.Sweep(cfg.RateLimitWindow); n > 0 {
					log.Debug("rate limiter sweep", zap.Int("removed", n))
				}
			}
		}
	}()
	return mem
}
