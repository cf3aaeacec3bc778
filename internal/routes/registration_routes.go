package routes

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"mirror/internal/config"
	"mirror/internal/handlers"
	"mirror/internal/middleware"
	"mirror/internal/repository"
	"mirror/internal/services"
)

func RegisterRegistrationRoutes(
	router chi.Router,
	base handlers.BaseHandler,
	db *sql.DB,
	cfg *config.Config,
	limit func(route string) func(http.Handler) http.Handler,
) {
	registrationHandler := handlers.NewRegistrationHandler(base, services.NewRegistrationRelay(cfg.AdminAPIURL, cfg.AdminSecret))
	adminHandler := handlers.NewAdminHandler(base, repository.NewRegistrationRepository(db))

	router.With(limit("register")).Post("/register", registrationHandler.Register)

	router.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminSecret(cfg.AdminSecret))
		r.Post("/registrations", adminHandler.CreateRegistration)
		r.Get("/registrations", adminHandler.ListRegistrations)
	})
}
