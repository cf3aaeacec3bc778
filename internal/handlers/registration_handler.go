package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"mirror/internal/models"
	"mirror/internal/repository"
	"mirror/internal/services"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// RegistrationHandler is the public sign-up-for-updates form. It does not
// touch the store itself; it relays to the admin endpoint.
type RegistrationHandler struct {
	BaseHandler
	relay *services.RegistrationRelay
}

func NewRegistrationHandler(base BaseHandler, relay *services.RegistrationRelay) *RegistrationHandler {
	return &RegistrationHandler{BaseHandler: base, relay: relay}
}

// Register godoc
// @Summary      Public registration
// @Tags         registrations
// @Accept       json
// @Produce      json
// @Param        body  body      models.RegistrationRequest  true  "Registration"
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]any
// @Failure      502   {object}  map[string]any
// @Router       /api/register [post]
func (h *RegistrationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegistrationRequest
	if !h.decode(w, r, &req) {
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if !h.validate(w, req) {
		return
	}

	if err := h.relay.Relay(r.Context(), req); err != nil {
		h.Log.Error("registration relay failed", zap.Error(err))
		writeFailure(w, http.StatusBadGateway, "Registration service unavailable", nil)
		return
	}

	writeSuccess(w, http.StatusOK, "Registration received")
}

// AdminHandler serves the registration data behind the admin secret.
type AdminHandler struct {
	BaseHandler
	registrations repository.RegistrationRepository
}

func NewAdminHandler(base BaseHandler, registrations repository.RegistrationRepository) *AdminHandler {
	return &AdminHandler{BaseHandler: base, registrations: registrations}
}

// CreateRegistration godoc
// @Summary      Store a registration
// @Tags         admin
// @Accept       json
// @Produce      json
// @Param        X-Admin-Secret  header    string                             true  "Admin secret"
// @Param        body            body      models.CreateRegistrationRequest  true  "Registration"
// @Success      201             {object}  models.Registration
// @Failure      400             {object}  map[string]any
// @Failure      401             {object}  map[string]any
// @Router       /api/admin/registrations [post]
func (h *AdminHandler) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	var req models.CreateRegistrationRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !h.validate(w, req) {
		return
	}

	source := req.Source
	if source == "" {
		source = "website"
	}
	reg := &models.Registration{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Email:     services.NormalizeEmail(req.Email),
		Language:  req.Language,
		Source:    source,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.registrations.Create(r.Context(), reg); err != nil {
		h.internalError(w, r, "Failed to store registration", err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// ListRegistrations godoc
// @Summary      List registrations, newest first
// @Tags         admin
// @Produce      json
// @Param        X-Admin-Secret  header    string  true   "Admin secret"
// @Param        limit           query     int     false  "Page size (max 200)"
// @Param        offset          query     int     false  "Offset"
// @Success      200             {object}  models.RegistrationList
// @Failure      401             {object}  map[string]any
// @Router       /api/admin/registrations [get]
func (h *AdminHandler) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	offset := max(queryInt(r, "offset", 0), 0)

	regs, err := h.registrations.List(r.Context(), limit, offset)
	if err != nil {
		h.internalError(w, r, "Failed to list registrations", err)
		return
	}
	total, err := h.registrations.Count(r.Context())
	if err != nil {
		h.internalError(w, r, "Failed to list registrations", err)
		return
	}
	if regs == nil {
		regs = []models.Registration{}
	}

	writeJSON(w, http.StatusOK, models.RegistrationList{
		Registrations: regs,
		Total:         total,
		Limit:         limit,
		Offset:        offset,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
