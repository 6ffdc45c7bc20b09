package like

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for likes.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// CountResponse is returned by GET /events/{id}/likes. Liked is only set
// when the caller sends ?userId=.
type CountResponse struct {
	EventID string `json:"eventId"`
	Count   int64  `json:"count"`
	Liked   *bool  `json:"liked,omitempty"`
}

func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	res, err := h.svc.Toggle(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Count(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("id")
	n, err := h.svc.Count(r.Context(), eventID)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	resp := CountResponse{EventID: eventID, Count: n}
	if userID := r.URL.Query().Get("userId"); userID != "" {
		liked, err := h.svc.Liked(r.Context(), userID, eventID)
		if err != nil {
			utilities.WriteError(w, h.logger, err)
			return
		}
		resp.Liked = &liked
	}
	utilities.WriteJSON(w, http.StatusOK, resp)
}
