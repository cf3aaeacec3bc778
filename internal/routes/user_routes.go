package routes

import (
	"github.com/go-chi/chi/v5"
	"mirror/internal/handlers"
	"mirror/internal/middleware"
	"mirror/internal/services"
)

func RegisterUserRoutes(router chi.Router, base handlers.BaseHandler, accounts *services.AccountService, jwtSecret string) {
	userHandler := handlers.NewUserHandler(base, accounts)

	router.Route("/users", func(r chi.Router) {
		r.Use(middleware.JWTAuth(jwtSecret))
		r.Get("/me", userHandler.Me)
		r.Put("/me/password", userHandler.ChangePassword)
	})
}
