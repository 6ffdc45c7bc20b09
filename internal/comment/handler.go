package comment

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/comment/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for comments.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.List(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, comments)
}

// Add serves POST /events/{id}/comments.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req entity.BodyCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	c, err := h.svc.Add(r.Context(), userID, r.PathValue("id"), req.Body)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, c)
}

// Edit serves PUT /comments/{id}.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	var req entity.BodyCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	c, err := h.svc.Edit(r.Context(), userID, r.PathValue("id"), req.Body)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
