package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"mirror/internal/handlers"
	"mirror/internal/middleware"
	"mirror/internal/ratelimit"
	"mirror/internal/services"
)

func RegisterAuthRoutes(
	router chi.Router,
	base handlers.BaseHandler,
	accounts *services.AccountService,
	resets *services.PasswordResetService,
	verifications *services.EmailVerificationService,
	limiter ratelimit.Limiter,
	limit func(route string) func(http.Handler) http.Handler,
) {
	authHandler := handlers.NewAuthHandler(base, accounts, resets)
	if limiter != nil {
		authHandler.ClearSigninLimitOnSuccess(limiter)
	}
	verificationHandler := handlers.NewVerificationHandler(base, verifications)

	router.Route("/auth", func(r chi.Router) {
		r.With(limit("signup")).Post("/signup", authHandler.Signup)
		r.With(limit(handlers.SigninRateLimitRoute)).Post("/signin", authHandler.Signin)
		r.Post("/signout", authHandler.Signout)
		r.With(limit("forgot-password")).Post("/forgot-password", authHandler.ForgotPassword)
		r.With(limit("reset-password")).Post("/reset-password", authHandler.ResetPassword)
		r.With(limit("verify-reset-token")).Post("/verify-reset-token", authHandler.VerifyResetToken)

		r.With(limit("send-verification"), middleware.OptionalJWT(base.Cfg.JWTSecret)).Post("/send-verification", verificationHandler.SendVerification)
		r.With(limit("verify-email")).Post("/verify-email", verificationHandler.VerifyEmail)
		r.Get("/verify-email", verificationHandler.VerifyEmailLink)
	})
}
