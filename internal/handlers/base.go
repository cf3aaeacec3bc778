package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/services"
)

// BaseHandler carries what every handler needs to answer a request.
type BaseHandler struct {
	Cfg *config.Config
	Log *zap.Logger
	V   *validator.Validate
}

func NewBaseHandler(cfg *config.Config, log *zap.Logger) BaseHandler {
	return BaseHandler{
		Cfg: cfg,
		Log: log,
		V:   services.NewValidator(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeFailure writes {"success":false,"error":message} plus any extra flags.
func writeFailure(w http.ResponseWriter, status int, message string, extra map[string]any) {
	body := map[string]any{"success": false}
	if message != "" {
		body["error"] = message
	}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func writeSuccess(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"success": true, "message": message})
}

// internalError logs err and answers 500 with message. The error text is
// only exposed in development.
func (h BaseHandler) internalError(w http.ResponseWriter, r *http.Request, message string, err error) {
	h.Log.Error(message,
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	var extra map[string]any
	if h.Cfg != nil && h.Cfg.IsDevelopment() {
		extra = map[string]any{"details": err.Error()}
	}
	writeFailure(w, http.StatusInternalServerError, message, extra)
}

func (h BaseHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body", nil)
		return false
	}
	return true
}

func (h BaseHandler) validate(w http.ResponseWriter, v any) bool {
	if err := h.V.Struct(v); err != nil {
		writeFailure(w, http.StatusBadRequest, validationMessage(err), nil)
		return false
	}
	return true
}

// validationMessage phrases the first failed field for the client.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return "Invalid email address"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	default:
		return field + " is invalid"
	}
}
