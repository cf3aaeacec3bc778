package handlers

import (
	"errors"
	"net/http"

	"mirror/internal/middleware"
	"mirror/internal/models"
	"mirror/internal/services"
)

type UserHandler struct {
	BaseHandler
	accounts *services.AccountService
}

func NewUserHandler(base BaseHandler, accounts *services.AccountService) *UserHandler {
	return &UserHandler{BaseHandler: base, accounts: accounts}
}

// Me godoc
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.User
// @Failure      401  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /api/users/me [get]
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	u, err := h.accounts.Me(r.Context(), userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			writeFailure(w, http.StatusNotFound, msgUserNotFound, nil)
			return
		}
		h.internalError(w, r, "Failed to fetch user", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": u})
}

// ChangePassword godoc
// @Summary      Change password
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      models.ChangePasswordRequest  true  "Passwords"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      401   {object}  map[string]any
// @Router       /api/users/me/password [put]
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "Authentication required", nil)
		return
	}

	var req models.ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.NewPassword != "" {
		if err := services.ValidatePassword(req.NewPassword); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error(), nil)
			return
		}
	}
	if !h.validate(w, req) {
		return
	}

	err := h.accounts.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeFailure(w, http.StatusUnauthorized, "Current password is incorrect", nil)
		case errors.Is(err, services.ErrUserNotFound):
			writeFailure(w, http.StatusNotFound, msgUserNotFound, nil)
		default:
			h.internalError(w, r, "Failed to change password", err)
		}
		return
	}

	writeSuccess(w, http.StatusOK, "Password changed successfully")
}
