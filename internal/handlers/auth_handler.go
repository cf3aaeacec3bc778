package handlers

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"mirror/internal/middleware"
	"mirror/internal/models"
	"mirror/internal/ratelimit"
	"mirror/internal/services"
)

const (
	msgResetSent      = "If an account exists with this email, a password reset link has been sent."
	msgProcessFailed  = "Failed to process request"
	msgSendFailed     = "Failed to send email"
	msgInvalidReset   = "Invalid reset token"
	msgExpiredReset   = "Reset token has expired"
	msgUsedReset      = "This reset token has already been used"
	msgPasswordReset  = "Password has been reset successfully"
	msgCredentials    = "Invalid email or password"
	msgEmailTaken     = "Email already registered"
	msgTokenRequired  = "Token is required"
	msgResetRequired  = "Token and new password are required"
	msgEmailRequired  = "Email is required"
	msgAccountCreated = "Failed to create account"
)

// SigninRateLimitRoute is the rate limit route the signin endpoint is
// mounted under. A successful signin clears that client's budget.
const SigninRateLimitRoute = "signin"

type AuthHandler struct {
	BaseHandler
	accounts      *services.AccountService
	resets        *services.PasswordResetService
	signinLimiter ratelimit.Limiter
}

func NewAuthHandler(base BaseHandler, accounts *services.AccountService, resets *services.PasswordResetService) *AuthHandler {
	return &AuthHandler{
		BaseHandler: base,
		accounts:    accounts,
		resets:      resets,
	}
}

// ClearSigninLimitOnSuccess makes Signin forget the caller's failed
// attempts in l once they authenticate.
func (h *AuthHandler) ClearSigninLimitOnSuccess(l ratelimit.Limiter) {
	h.signinLimiter = l
}

// Signup godoc
// @Summary      Create an account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SignupRequest  true  "Signup"
// @Success      201   {object}  models.AuthResponse
// @Failure      400   {object}  map[string]any
// @Failure      409   {object}  map[string]any
// @Router       /api/auth/signup [post]
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Password != "" {
		if err := services.ValidatePassword(req.Password); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	if !h.validate(w, req) {
		return
	}

	u, token, err := h.accounts.Signup(r.Context(), req)
	if err != nil {
		if errors.Is(err, services.ErrEmailTaken) {
			writeFailure(w, http.StatusConflict, msgEmailTaken, nil)
			return
		}
		h.internalError(w, r, msgAccountCreated, err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, models.AuthResponse{Success: true, User: u, Token: token})
}

// Signin godoc
// @Summary      Sign in with email and password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SigninRequest  true  "Credentials"
// @Success      200   {object}  models.AuthResponse
// @Failure      401   {object}  map[string]any
// @Router       /api/auth/signin [post]
func (h *AuthHandler) Signin(w http.ResponseWriter, r *http.Request) {
	var req models.SigninRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validate(w, req) {
		return
	}

	u, token, err := h.accounts.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			writeFailure(w, http.StatusUnauthorized, msgCredentials, nil)
			return
		}
		h.internalError(w, r, msgProcessFailed, err)
		return
	}

	if h.signinLimiter != nil {
		key := middleware.RateLimitKey(SigninRateLimitRoute, r)
		if err := h.signinLimiter.Reset(r.Context(), key); err != nil {
			h.Log.Warn("failed to reset signin rate limit", zap.String("key", key), zap.Error(err))
		}
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, models.AuthResponse{Success: true, User: u, Token: token})
}

// Signout clears the session cookie.
func (h *AuthHandler) Signout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.Cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
	writeSuccess(w, http.StatusOK, "Signed out")
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Cfg.JWTTTL.Seconds()),
		HttpOnly: true,
		Secure:   !h.Cfg.IsDevelopment(),
		SameSite: http.SameSiteLaxMode,
	})
}

// ForgotPassword godoc
// @Summary      Email a password reset link
// @Description  Answers identically whether or not the email is registered.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ForgotPasswordRequest  true  "Email"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      500   {object}  map[string]any
// @Router       /api/auth/forgot-password [post]
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeFailure(w, http.StatusBadRequest, msgEmailRequired, nil)
		return
	}

	if err := h.resets.RequestReset(r.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrEmailDelivery) {
			h.internalError(w, r, msgSendFailed, err)
			return
		}
		h.internalError(w, r, msgProcessFailed, err)
		return
	}

	writeSuccess(w, http.StatusOK, msgResetSent)
}

// ResetPassword godoc
// @Summary      Set a new password with a reset token
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.ResetPasswordRequest  true  "Token and new password"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/auth/reset-password [post]
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req models.ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeFailure(w, http.StatusBadRequest, msgResetRequired, nil)
		return
	}

	err := h.resets.ResetPassword(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		var policy *services.PasswordPolicyError
		switch {
		case errors.As(err, &policy):
			writeFailure(w, http.StatusBadRequest, policy.Message, nil)
		case errors.Is(err, services.ErrTokenInvalid):
			writeFailure(w, http.StatusBadRequest, msgInvalidReset, map[string]any{"invalid": true})
		case errors.Is(err, services.ErrTokenExpired):
			writeFailure(w, http.StatusBadRequest, msgExpiredReset, map[string]any{"expired": true})
		case errors.Is(err, services.ErrTokenUsed):
			writeFailure(w, http.StatusBadRequest, msgUsedReset, map[string]any{"used": true})
		default:
			h.internalError(w, r, msgProcessFailed, err)
		}
		return
	}

	writeSuccess(w, http.StatusOK, msgPasswordReset)
}

// VerifyResetToken godoc
// @Summary      Check a reset token before showing the form
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.TokenRequest  true  "Token"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/auth/verify-reset-token [post]
func (h *AuthHandler) VerifyResetToken(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": msgTokenRequired})
		return
	}

	if _, err := h.resets.ValidateToken(r.Context(), req.Token); err != nil {
		switch {
		case errors.Is(err, services.ErrTokenInvalid):
			writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": msgInvalidReset})
		case errors.Is(err, services.ErrTokenExpired):
			writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "expired": true, "error": msgExpiredReset})
		case errors.Is(err, services.ErrTokenUsed):
			writeJSON(w, http.StatusBadRequest, map[string]any{"valid": false, "error": msgUsedReset})
		default:
			h.internalError(w, r, msgProcessFailed, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}
