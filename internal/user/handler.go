package user

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-events-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-events-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-events-go/pkg/utilities"
)

// Handler exposes HTTP endpoints for the user directory.
type Handler struct {
	svc    *Service
	tokens *auth.Issuer
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, tokens *auth.Issuer, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// LoginRequest login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by both login endpoints.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *entity.User `json:"user"`
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req entity.SignupCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	h.writeSession(w, u)
}

// Federated signs in with a Google identity. The Google ID token itself is
// verified by the gateway in front of this service.
func (h *Handler) Federated(w http.ResponseWriter, r *http.Request) {
	var req entity.FederatedCommand
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	u, err := h.svc.FederatedLogin(r.Context(), req)
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	h.writeSession(w, u)
}

func (h *Handler) writeSession(w http.ResponseWriter, u *entity.User) {
	token, exp, err := h.tokens.Issue(u.ID)
	if err != nil {
		h.logger.Warnw("issue token failed", "user_id", u.ID, "err", err)
		utilities.WriteJSON(w, http.StatusInternalServerError, utilities.ErrorBody{Error: "internal error"})
		return
	}
	utilities.WriteJSON(w, http.StatusOK, SessionResponse{Token: token, ExpiresAt: exp, User: u})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.svc.Logout(r.Context(), userID); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.List(r.Context())
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, users)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserID(r.Context())
	if err := h.svc.Delete(r.Context(), userID, r.PathValue("id")); err != nil {
		utilities.WriteError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
