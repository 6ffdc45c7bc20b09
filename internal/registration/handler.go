package registration

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for registrations.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	reg, err := h.svc.Register(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, reg)
}

func (h *Handler) Unregister(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.svc.Unregister(r.Context(), userID, r.PathValue("id")); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListByEvent serves GET /events/{id}/registrations.
func (h *Handler) ListByEvent(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrants(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, regs)
}

// ListByUser serves GET /users/{id}/registrations.
func (h *Handler) ListByUser(w http.ResponseWriter, r *http.Request) {
	regs, err := h.svc.ListRegistrations(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, regs)
}
