package routes

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/handlers"
	"mirror/internal/middleware"
	"mirror/internal/ratelimit"
	"mirror/internal/repository"
	"mirror/internal/services"
)

// Deps are the long lived collaborators the router wires into handlers.
type Deps struct {
	DB      *sql.DB
	Cfg     *config.Config
	Log     *zap.Logger
	Limiter ratelimit.Limiter
	Mailer  services.EmailSender
}

func SetupRoutes(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.Cfg),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.AdminSecretHeader},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"message": "Mirror of Dreams API"})
	})
	r.Get("/health", healthHandler(d.DB))

	if RegisterSwaggerRoutes(r, d.Cfg) {
		d.Log.Info("swagger ui enabled", zap.String("path", swaggerIndex))
	}

	users := repository.NewUserRepository(d.DB)
	verifications := services.NewEmailVerificationService(
		users, repository.NewEmailVerificationRepository(d.DB), d.Mailer, d.Log, d.Cfg.AppURL, d.Cfg.VerificationTokenTTL,
	)
	resets := services.NewPasswordResetService(
		users, repository.NewPasswordResetRepository(d.DB), d.Mailer, d.Log, d.Cfg.AppURL, d.Cfg.ResetTokenTTL,
	)
	accounts := services.NewAccountService(users, verifications, d.Log, d.Cfg.JWTSecret, d.Cfg.JWTTTL)
	base := handlers.NewBaseHandler(d.Cfg, d.Log)

	limit := limiterFor(d)

	r.Route("/api", func(r chi.Router) {
		RegisterAuthRoutes(r, base, accounts, resets, verifications, d.Limiter, limit)
		RegisterUserRoutes(r, base, accounts, d.Cfg.JWTSecret)
		RegisterRegistrationRoutes(r, base, d.DB, d.Cfg, limit)
	})

	return r
}

// limiterFor returns a constructor for per-route rate limit middleware.
func limiterFor(d Deps) func(route string) func(http.Handler) http.Handler {
	return func(route string) func(http.Handler) http.Handler {
		if d.Limiter == nil || d.Cfg.RateLimitRequests <= 0 {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(d.Limiter, route, d.Cfg.RateLimitRequests, d.Cfg.RateLimitWindow, d.Log)
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) > 0 {
		return cfg.CORSAllowedOrigins
	}
	if cfg.AppURL != "" {
		return []string{cfg.AppURL}
	}
	return []string{"*"}
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		dbStatus := map[string]any{"status": "ok"}
		status := http.StatusOK
		overall := "ok"
		if err := db.PingContext(ctx); err != nil {
			dbStatus = map[string]any{"status": "error", "error": err.Error()}
			status = http.StatusServiceUnavailable
			overall = "degraded"
		}

		writeJSON(w, status, map[string]any{"status": overall, "db": dbStatus})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
