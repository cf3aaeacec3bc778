package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"mirror/internal/middleware"
	"mirror/internal/models"
	"mirror/internal/services"
)

const (
	msgVerificationSent    = "If an account exists with this email, a verification link has been sent."
	msgAlreadyVerified     = "Email is already verified"
	msgEmailVerified       = "Email verified successfully"
	msgInvalidVerification = "Invalid verification token"
	msgExpiredVerification = "Verification token has expired"
	msgUserNotFound        = "User not found"
	msgEmailOrUserRequired = "Email or userId is required"
	msgSignInToResend      = "Sign in to resend by userId"
	msgNotYourAccount      = "Cannot send verification for another user"
)

type VerificationHandler struct {
	BaseHandler
	verifications *services.EmailVerificationService
}

func NewVerificationHandler(base BaseHandler, verifications *services.EmailVerificationService) *VerificationHandler {
	return &VerificationHandler{BaseHandler: base, verifications: verifications}
}

// SendVerification godoc
// @Summary      Email a verification link
// @Description  By email the answer never reveals whether the account exists. By userId the caller must be signed in as that user.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.SendVerificationRequest  true  "Email or user id"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Failure      403   {object}  map[string]any
// @Failure      404   {object}  map[string]any
// @Security     BearerAuth
// @Router       /api/auth/send-verification [post]
func (h *VerificationHandler) SendVerification(w http.ResponseWriter, r *http.Request) {
	var req models.SendVerificationRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.UserID = strings.TrimSpace(req.UserID)

	if req.UserID != "" {
		caller, ok := middleware.UserIDFromContext(r.Context())
		if !ok {
			writeFailure(w, http.StatusUnauthorized, msgSignInToResend, nil)
			return
		}
		if caller != req.UserID {
			writeFailure(w, http.StatusForbidden, msgNotYourAccount, nil)
			return
		}

		res, err := h.verifications.SendToUser(r.Context(), req.UserID)
		if err != nil {
			h.sendFailed(w, r, err)
			return
		}
		if res.AlreadyVerified {
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "alreadyVerified": true, "message": msgAlreadyVerified})
			return
		}
		writeSuccess(w, http.StatusOK, "Verification email sent")
		return
	}

	if req.Email == "" {
		writeFailure(w, http.StatusBadRequest, msgEmailOrUserRequired, nil)
		return
	}

	// The already-verified outcome is folded into the generic answer so the
	// response cannot be used to enumerate addresses.
	if _, err := h.verifications.SendToEmail(r.Context(), req.Email); err != nil {
		h.sendFailed(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, msgVerificationSent)
}

func (h *VerificationHandler) sendFailed(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeFailure(w, http.StatusNotFound, msgUserNotFound, nil)
	case errors.Is(err, services.ErrEmailDelivery):
		h.internalError(w, r, msgSendFailed, err)
	default:
		h.internalError(w, r, msgProcessFailed, err)
	}
}

// VerifyEmail godoc
// @Summary      Confirm an email address
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      models.TokenRequest  true  "Token"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Router       /api/auth/verify-email [post]
func (h *VerificationHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req models.TokenRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Token == "" {
		writeFailure(w, http.StatusBadRequest, msgTokenRequired, nil)
		return
	}

	res, err := h.verifications.Verify(r.Context(), req.Token)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTokenInvalid):
			writeFailure(w, http.StatusBadRequest, msgInvalidVerification, map[string]any{"invalid": true})
		case errors.Is(err, services.ErrTokenExpired):
			writeFailure(w, http.StatusBadRequest, msgExpiredVerification, map[string]any{"expired": true})
		default:
			h.internalError(w, r, msgProcessFailed, err)
		}
		return
	}

	if res.AlreadyVerified {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "alreadyVerified": true, "message": msgAlreadyVerified})
		return
	}
	writeSuccess(w, http.StatusOK, msgEmailVerified)
}

// VerifyEmailLink godoc
// @Summary      Email link target
// @Description  Redirects to the front-end confirmation page, which posts the token back.
// @Tags         auth
// @Param        token  query  string  false  "Verification token"
// @Success      302
// @Router       /api/auth/verify-email [get]
func (h *VerificationHandler) VerifyEmailLink(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Redirect(w, r, h.Cfg.AppURL+"/auth/signin", http.StatusFound)
		return
	}
	http.Redirect(w, r, h.Cfg.AppURL+"/auth/verify-email?token="+url.QueryEscape(token), http.StatusFound)
}
